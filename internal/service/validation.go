package service

import (
	"strings"
	"unicode/utf8"

	"github.com/maxviazov/registry-api/internal/repository"
)

const maxKeywordLen = 255

// parseSort is lenient: anything but "crates" lists alphabetically.
func parseSort(raw string) repository.KeywordSort {
	sort, ok := repository.ParseKeywordSort(strings.ToLower(strings.TrimSpace(raw)))
	if !ok {
		return repository.SortAlpha
	}
	return sort
}

func normalizeKeyword(raw string) (string, []FieldError) {
	name := strings.TrimSpace(raw)
	switch {
	case name == "":
		return "", []FieldError{{Field: "keyword_id", Message: "must not be empty"}}
	case utf8.RuneCountInString(name) > maxKeywordLen:
		return "", []FieldError{{Field: "keyword_id", Message: "must be at most 255 characters"}}
	}
	return name, nil
}
