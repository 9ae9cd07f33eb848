// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package version exposes build information injected via -ldflags -X.
package version

import (
	"fmt"
	"io"
	"runtime"
	"text/template"
	"time"

	"github.com/siderolabs/timed/internal/pkg/constants"
)

var (
	// Name is set at build time.
	Name = "timed"
	// Tag is set at build time.
	Tag string
	// SHA is set at build time.
	SHA string
	// Built is set at build time, in RFC 3339 format.
	Built string
)

const versionTemplate = `{{ .Name }}:
	Tag:         {{ .Tag }}
	SHA:         {{ .SHA }}
	Built:       {{ .Built }}
	Go version:  {{ .GoVersion }}
	OS/Arch:     {{ .Os }}/{{ .Arch }}
	Floor:       {{ .Floor }}
`

// Version contains verbose version information.
type Version struct {
	Name      string
	Tag       string
	SHA       string
	Built     string
	GoVersion string
	Os        string
	Arch      string
	Floor     string
}

// NewVersion returns version information of the running binary.
func NewVersion() *Version {
	return &Version{
		Name:      Name,
		Tag:       Tag,
		SHA:       SHA,
		Built:     Built,
		GoVersion: runtime.Version(),
		Os:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Floor:     time.Unix(BuildFloor(), 0).UTC().Format(time.RFC3339),
	}
}

// PrintLongVersion prints verbose version information.
func PrintLongVersion(w io.Writer) error {
	tmpl, err := template.New("version").Parse(versionTemplate)
	if err != nil {
		return err
	}

	return tmpl.Execute(w, NewVersion())
}

// Short returns the name, tag and SHA.
func Short() string {
	return fmt.Sprintf("%s %s-%s", Name, Tag, SHA)
}

// BuildFloor returns the build time as Unix seconds.
//
// The compiled-in default is used if the build time is not set or invalid.
func BuildFloor() int64 {
	return parseBuildFloor(Built)
}

func parseBuildFloor(built string) int64 {
	t, err := time.Parse(time.RFC3339, built)
	if err != nil {
		return constants.DefaultBuildFloor
	}

	return max(t.Unix(), constants.DefaultBuildFloor)
}
