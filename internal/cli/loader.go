package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/simkernel/internal/compiler"
	"github.com/roach88/simkernel/internal/plan"
)

// LoadError represents an error that occurred while loading a plan.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants shared by CLI commands. Plan validation codes
// (E2xx) come from the plan and compiler packages.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No plan files found
	ErrCodeLoadFailed   = "E004" // Plan could not be read or parsed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeBuildFailed  = "E006" // CUE evaluation failed
	ErrCodeStore        = "E007" // Database error
	ErrCodeUnknownModel = "E008" // --model not in the catalog

	ErrCodeInvalidPlan    = "E200" // Plan failed validation
	ErrCodeRunFailed      = "E300" // Simulation aborted
	ErrCodeActivityFailed = "E301" // Activities could not be instantiated
	ErrCodeTestFailed     = "E400" // Scenarios failed
)

// LoadPlanFile loads a YAML plan or compiles a CUE one.
func LoadPlanFile(path string) (*plan.Plan, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "plan file not found"}
		}
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: err.Error()}
	}

	if filepath.Ext(path) == ".cue" {
		p, err := compiler.CompileFile(path)
		if err != nil {
			return nil, convertCompileError(err, path)
		}
		return p, nil
	}

	p, err := plan.Load(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: err.Error()}
	}
	return p, nil
}

// FindPlanFiles expands the arguments into plan files. Directories are
// walked for .yaml, .yml and .cue files; scenario files are skipped.
func FindPlanFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "path not found"}
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		var found []string
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isPlanFile(p) {
				return nil
			}
			found = append(found, p)
			return nil
		})
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Path: path, Message: err.Error()}
		}
		slices.Sort(found)
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no plan files found in %v", paths)}
	}
	return files, nil
}

func isPlanFile(path string) bool {
	base := filepath.Base(path)
	if strings.Contains(base, ".scenario.") {
		return false
	}
	switch filepath.Ext(base) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

// convertCompileError converts a compiler error to a LoadError with
// position info.
func convertCompileError(err error, path string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Path:    path,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeBuildFailed, Path: path, Message: err.Error()}
}

// MapFieldToErrorCode maps a compiler error field to the plan validation
// code for the same problem.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "name":
		return plan.ErrPlanNameEmpty
	case "horizon":
		return plan.ErrHorizonNotPositive
	case "sampling_period":
		return plan.ErrSamplingNegative
	case "id":
		return plan.ErrActivityIDEmpty
	case "type":
		return plan.ErrActivityTypeEmpty
	case "start":
		return plan.ErrStartOutOfRange
	case "plan", "args":
		return ErrCodeLoadFailed
	default:
		return ErrCodeBuildFailed
	}
}
