package project

import (
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/workflowkit/engine/pkg/models"
)

const inputFilesDirName = "inputFiles"

// writeEmbeddedFiles walks the already-contract-converted parameters tree
// looking for *models.InputFile and []*models.InputFile values lifted by
// the mapper, and writes their decoded content to disk under inputFiles/.
func writeEmbeddedFiles(dir string, converted interface{}) error {
	switch v := converted.(type) {
	case *models.InputFile:
		return writeInputFile(dir, v)
	case []*models.InputFile:
		for _, f := range v {
			if err := writeInputFile(dir, f); err != nil {
				return err
			}
		}
	case map[string]interface{}:
		for _, child := range v {
			if err := writeEmbeddedFiles(dir, child); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, child := range v {
			if err := writeEmbeddedFiles(dir, child); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeInputFile(dir string, f *models.InputFile) error {
	if f == nil || f.FileName == "" {
		return nil
	}
	target := filepath.Join(dir, inputFilesDirName, f.FileName)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(f.Content)
	if err != nil {
		// Not every embedded file is guaranteed base64 by upstream
		// callers; fall back to writing the raw content.
		data = []byte(f.Content)
	}
	return os.WriteFile(target, data, 0o644)
}

// scanOutputFiles walks dir/output (the known output convention from
// spec §4.3 step 7) and returns the relative paths of everything it finds.
func scanOutputFiles(dir string) ([]string, error) {
	root := filepath.Join(dir, outputDirName)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, nil
	}

	var files []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
