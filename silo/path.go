package silo

import (
	"fmt"
	"path"
	"strings"
)

// ResolvePath returns the absolute form of name relative to the directory
// cwd. An empty name resolves to cwd.
func ResolvePath(cwd, name string) string {
	if cwd == "" {
		cwd = "/"
	}
	if name == "" {
		return path.Clean(cwd)
	}
	if strings.HasPrefix(name, "/") {
		return path.Clean(name)
	}
	return path.Join(cwd, name)
}

// ParseAttrPath splits /object@attribute.
//
// Examples:
//   - "/@info" -> objectPath="/", attrName="info"
//   - "/.silo@next_id" -> objectPath="/.silo", attrName="next_id"
func ParseAttrPath(p string) (objectPath, attrName string, err error) {
	at := strings.LastIndex(p, "@")
	if at == -1 {
		return "", "", fmt.Errorf("attribute path must contain '@': %q", p)
	}
	objectPath, attrName = p[:at], p[at+1:]
	if attrName == "" {
		return "", "", fmt.Errorf("empty attribute name: %q", p)
	}
	return ResolvePath("/", objectPath), attrName, nil
}

// JoinAttrPath is the inverse of ParseAttrPath.
func JoinAttrPath(objectPath, attrName string) string {
	if objectPath == "/" {
		return "/@" + attrName
	}
	return objectPath + "@" + attrName
}

// SplitPath returns the non-empty components of p.
func SplitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return []string{}
	}
	return strings.Split(p, "/")
}

// reserved reports whether p lies in the namespace of generated names.
func reserved(p string) bool {
	return p == reservedDir || strings.HasPrefix(p, reservedDir+"/")
}
