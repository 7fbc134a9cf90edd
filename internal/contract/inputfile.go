package contract

import "github.com/workflowkit/engine/pkg/models"

// detectInputFile recognizes the embedded-file shape: an object carrying at
// least "filename" and "content" (optionally "contentType"/"fileSize") is
// lifted into an *models.InputFile instead of passed through as a plain
// map. It also recognizes the legacy "inputFiles" list shape, returning a
// slice of *models.InputFile under the same key.
func detectInputFile(v map[string]interface{}) (interface{}, bool) {
	if files, ok := v["inputFiles"]; ok {
		if list, ok := files.([]interface{}); ok {
			converted := make([]*models.InputFile, 0, len(list))
			for _, item := range list {
				if m, ok := item.(map[string]interface{}); ok {
					if f, ok := fileFromMap(m); ok {
						converted = append(converted, f)
					}
				}
			}
			if len(converted) > 0 {
				return map[string]interface{}{"inputFiles": converted}, true
			}
		}
	}

	if f, ok := fileFromMap(v); ok {
		return f, true
	}

	return nil, false
}

func fileFromMap(v map[string]interface{}) (*models.InputFile, bool) {
	name, hasName := v["filename"].(string)
	content, hasContent := v["content"].(string)
	if !hasName || !hasContent || name == "" {
		return nil, false
	}

	f := &models.InputFile{FileName: name, Content: content}
	if ct, ok := v["contentType"].(string); ok {
		f.ContentType = ct
	}
	switch size := v["fileSize"].(type) {
	case int64:
		f.FileSize = size
	case int:
		f.FileSize = int64(size)
	case float64:
		f.FileSize = int64(size)
	}
	return f, true
}
