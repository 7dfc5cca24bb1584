// Package checksum computes the content digests attached to deployed
// artifacts and build-info records.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Digest algorithm names, also used as map keys in the result of Compute.
const (
	MD5  = "md5"
	SHA1 = "sha1"
)

// Compute reads path once and returns its md5 and sha1 digests as lowercase
// hex strings keyed by algorithm name.
//
// A path that does not exist or is not a regular file yields (nil, nil):
// there is nothing to checksum and that is not an error.
func Compute(path string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return Sum(f)
}

// Sum returns the digests of everything read from r.
func Sum(r io.Reader) (map[string]string, error) {
	md5h := md5.New()
	sha1h := sha1.New()
	if _, err := io.Copy(io.MultiWriter(md5h, sha1h), r); err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return map[string]string{
		MD5:  hex.EncodeToString(md5h.Sum(nil)),
		SHA1: hex.EncodeToString(sha1h.Sum(nil)),
	}, nil
}
