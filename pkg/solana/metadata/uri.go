package metadata

import "strings"

// CleanURI strips the NUL padding the program leaves in fixed size string
// fields.
func CleanURI(uri string) string {
	return strings.ReplaceAll(uri, "\x00", "")
}

// URI returns the cleaned off-chain JSON location.
func (m *Metadata) URI() string {
	return CleanURI(m.Data.URI)
}

// Name returns the cleaned token name.
func (m *Metadata) Name() string {
	return CleanURI(m.Data.Name)
}

// Symbol returns the cleaned token symbol.
func (m *Metadata) Symbol() string {
	return CleanURI(m.Data.Symbol)
}
