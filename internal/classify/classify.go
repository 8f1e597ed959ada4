// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify maps manifest rows to export targets.
package classify

import (
	"path/filepath"

	"github.com/pdiddy/informatica-export/pkg/types"
)

const (
	typeTransformation = "transformation"
	typeMapplet        = "mapplet"
)

// Classify derives the export target of row under outputRoot.
//
// pmrep lists mapplets as transformations of subtype mapplet, but
// objectexport only accepts them as object type mapplet without a subtype.
// That is the only correction applied.
func Classify(outputRoot string, row types.ManifestRow) types.ExportTarget {
	objType, subtype := row.Type(), row.Subtype()
	if objType == typeTransformation && subtype == typeMapplet {
		objType, subtype = typeMapplet, types.SubtypeNone
	}

	dir := filepath.Join(outputRoot, row.Folder(), objType)
	if subtype != types.SubtypeNone {
		dir = filepath.Join(dir, subtype)
	}

	return types.ExportTarget{
		Folder:  row.Folder(),
		Name:    row.Name(),
		Type:    objType,
		Subtype: subtype,
		Dir:     dir,
		Path:    filepath.Join(dir, row.Name()+".xml"),
	}
}
