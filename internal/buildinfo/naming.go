package buildinfo

import "strings"

// SnapshotMarker marks a deployment path as belonging to a snapshot version.
const SnapshotMarker = "-SNAPSHOT"

// ModuleID returns "group:artifact:version".
func ModuleID(group, artifact, version string) string {
	return group + ":" + artifact + ":" + version
}

// ArtifactName returns "artifact-version[-classifier].ext".
func ArtifactName(artifact, version, classifier, ext string) string {
	name := artifact + "-" + version
	if strings.TrimSpace(classifier) != "" {
		name += "-" + classifier
	}
	return name + "." + ext
}

// DeploymentPath returns the repository layout path
// "group/with/slashes/artifact/version/<ArtifactName>".
func DeploymentPath(group, artifact, version, classifier, ext string) string {
	return strings.Join([]string{
		strings.ReplaceAll(group, ".", "/"),
		artifact,
		version,
		ArtifactName(artifact, version, classifier, ext),
	}, "/")
}

// TypeString derives the kind recorded for an artifact or dependency. A
// classified jar becomes "jar-<classifier>"; types other than jar, pom and
// ivy are replaced by the file extension when one is known.
func TypeString(typ, classifier, ext string) string {
	classifier = strings.TrimSpace(classifier)
	switch {
	case typ == "jar" && classifier != "":
		return typ + "-" + classifier
	case typ != "jar" && typ != "pom" && typ != "ivy" && strings.TrimSpace(ext) != "":
		return ext
	default:
		return typ
	}
}

// ArtifactKey identifies a deployable artifact across the session:
// "moduleID:artifactName".
func ArtifactKey(moduleID, artifactName string) string {
	return moduleID + ":" + artifactName
}

// TargetRepository picks the snapshot repository when one is configured and
// path carries the snapshot marker, and the release repository otherwise.
func TargetRepository(path, releaseRepo, snapshotRepo string) string {
	if snapshotRepo != "" && strings.Contains(path, SnapshotMarker) {
		return snapshotRepo
	}
	return releaseRepo
}
