package archive

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/gosiva/archive-ui/internal/format"
)

// ArtifactType names a file that can appear in a snapshot directory.
type ArtifactType string

const (
	ArtifactWACZ       ArtifactType = "archive.wacz"
	ArtifactMetadata   ArtifactType = "metadata.json"
	ArtifactScreenshot ArtifactType = "screenshot.png"
	ArtifactSingleFile ArtifactType = "singlefile.html"
	ArtifactWARC       ArtifactType = "warc.file"
	ArtifactDocument   ArtifactType = "document.html"
)

// ArtifactTypes lists every known artifact, in detection order.
var ArtifactTypes = []ArtifactType{
	ArtifactWACZ,
	ArtifactMetadata,
	ArtifactScreenshot,
	ArtifactSingleFile,
	ArtifactWARC,
	ArtifactDocument,
}

var contentTypes = map[ArtifactType]string{
	ArtifactWACZ:       "application/zip",
	ArtifactMetadata:   "application/json",
	ArtifactScreenshot: "image/png",
	ArtifactSingleFile: "text/html; charset=utf-8",
	ArtifactWARC:       "application/warc",
	ArtifactDocument:   "text/html; charset=utf-8",
}

// IsKnownArtifact reports whether name is one of ArtifactTypes.
func IsKnownArtifact(name string) bool {
	_, ok := contentTypes[ArtifactType(name)]
	return ok
}

// Artifact describes one artifact file of a snapshot.
type Artifact struct {
	Type        ArtifactType `json:"artifact_type"`
	Filename    string       `json:"filename"`
	FilePath    string       `json:"-"`
	SizeBytes   *int64       `json:"size_bytes"`
	SizeDisplay string       `json:"size_display"`
	Exists      bool         `json:"exists"`
	MIMEType    string       `json:"mime_type,omitempty"`
	Checksum    string       `json:"checksum,omitempty"`

	// ChecksumSampled marks a checksum taken over the ends of a large file.
	ChecksumSampled bool `json:"checksum_sampled,omitempty"`
}

// ValidateFilename rejects names that could escape the snapshot directory.
func ValidateFilename(name string) error {
	if name == "" || len(name) > 255 {
		return errors.Wrap(ErrValidation, "filename must be 1-255 characters")
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return errors.Wrapf(ErrValidation, "filename %q cannot contain path traversal characters", name)
	}
	return nil
}

// NewArtifactFromFile stats path and describes it as an artifact of type t.
// A missing file yields Exists=false and no size.
func NewArtifactFromFile(t ArtifactType, path string) (Artifact, error) {
	name := filepath.Base(path)
	if err := ValidateFilename(name); err != nil {
		return Artifact{}, err
	}

	a := Artifact{
		Type:     t,
		Filename: name,
		FilePath: path,
		MIMEType: contentTypes[t],
	}

	info, err := os.Stat(path)
	switch {
	case err == nil:
		size := info.Size()
		a.SizeBytes = &size
		a.Exists = true
	case os.IsNotExist(err):
	default:
		return Artifact{}, errors.Wrapf(err, "stat artifact %s", path)
	}
	a.SizeDisplay = a.FormattedSize()
	return a, nil
}

// MissingArtifact describes an artifact that should exist but does not.
func MissingArtifact(t ArtifactType) Artifact {
	return Artifact{
		Type:        t,
		Filename:    string(t),
		SizeDisplay: format.UnknownSize,
		MIMEType:    contentTypes[t],
	}
}

// FormattedSize renders the size, or format.UnknownSize when it is not known.
func (a *Artifact) FormattedSize() string {
	if a.SizeBytes == nil {
		return format.UnknownSize
	}
	return format.MustFormatFileSize(*a.SizeBytes)
}

// IsViewable reports whether a browser can display the artifact directly.
func (a *Artifact) IsViewable() bool {
	switch a.Type {
	case ArtifactSingleFile, ArtifactDocument, ArtifactScreenshot:
		return true
	}
	return false
}

// IsReplayable reports whether the artifact needs a web-archive replayer.
func (a *Artifact) IsReplayable() bool {
	return a.Type == ArtifactWARC || a.Type == ArtifactWACZ
}

// ContentTypeHeader returns the Content-Type to serve the artifact with.
func (a *Artifact) ContentTypeHeader() string {
	return ContentTypeFor(a.Type, a.MIMEType)
}

// ContentTypeFor returns override when set, else the default for t.
func ContentTypeFor(t ArtifactType, override string) string {
	if override != "" {
		return override
	}
	if ct, ok := contentTypes[t]; ok {
		return ct
	}
	return "application/octet-stream"
}
