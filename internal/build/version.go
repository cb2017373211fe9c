package build

import "fmt"

var (
	version   string
	buildhash string
)

func Version() (string, string) {
	return version, buildhash
}

func VersionString() string {
	v, hash := Version()
	if v == "" {
		v = "development"
	}

	versionString := fmt.Sprintf("reeledit version: %s", v)
	if hash != "" {
		versionString += fmt.Sprintf(" (%s)", hash)
	}
	return versionString
}
