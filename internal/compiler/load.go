package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/mergeq/internal/ir"
)

// LoadString compiles inline CUE source. name is used in error positions.
func LoadString(name, src string) (*ir.Config, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(name))
	return CompileConfig(v)
}

// LoadFiles compiles each file separately and unifies the results, so a
// config may be split across files without a shared package clause.
func LoadFiles(paths ...string) (*ir.Config, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("load config: no files")
	}

	ctx := cuecontext.New()
	var merged cue.Value
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		if i == 0 {
			merged = v
			continue
		}
		merged = merged.Unify(v)
	}
	return CompileConfig(merged)
}
