package handler

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gunta/skypilot/pkg/response"
)

var errOutsideRoot = errors.New("destination must stay inside the download directory")

// confinePath resolves dest against root and rejects anything that leaves
// it. An empty dest, or root itself, resolves to root as a directory.
func confinePath(root, dest string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	sep := string(filepath.Separator)
	if dest == "" {
		return rootAbs + sep, nil
	}
	for _, part := range strings.Split(filepath.ToSlash(dest), "/") {
		if part == ".." {
			return "", errOutsideRoot
		}
	}

	target := dest
	if !filepath.IsAbs(target) {
		target = filepath.Join(rootAbs, target)
	}
	target = filepath.Clean(target)
	rel, err := filepath.Rel(rootAbs, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+sep) {
		return "", errOutsideRoot
	}
	if rel == "." || strings.HasSuffix(dest, "/") || strings.HasSuffix(dest, sep) {
		return target + sep, nil
	}
	return target, nil
}

func destinationError(c *fiber.Ctx, err error) error {
	if errors.Is(err, errOutsideRoot) {
		return response.Forbidden(c, err.Error())
	}
	return response.ServiceError(c, err.Error())
}
