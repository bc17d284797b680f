package skills

import "errors"

// ErrSkillNotFound is returned by Registry.Get for unknown skill names.
var ErrSkillNotFound = errors.New("skill not found")
