package dynamic

// Pattern is a named template addressable by `$dynamic` (§3 "Pattern
// definition").
type Pattern struct {
	Template string
}

// Patterns maps a pattern name to its definition.
type Patterns map[string]Pattern
