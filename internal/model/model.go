// Package model contains domain entities and DTOs used across layers.
// I keep it lean and focused on data shapes without behavior.
package model

import (
	"time"

	"github.com/uptrace/bun"
)

// Keyword is a crate keyword with the number of crates tagged with it.
type Keyword struct {
	bun.BaseModel `bun:"table:keywords,alias:k"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Keyword   string    `bun:"keyword,notnull,unique" json:"keyword"`
	CratesCnt int32     `bun:"crates_cnt,notnull" json:"crates_cnt"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// EncodableKeyword is the public JSON view of a keyword. The keyword text doubles as its id.
type EncodableKeyword struct {
	ID        string    `json:"id"`
	Keyword   string    `json:"keyword"`
	CreatedAt time.Time `json:"created_at"`
	CratesCnt int32     `json:"crates_cnt"`
}

// Encodable converts a stored keyword into its API view.
func (k Keyword) Encodable() EncodableKeyword {
	return EncodableKeyword{
		ID:        k.Keyword,
		Keyword:   k.Keyword,
		CreatedAt: k.CreatedAt,
		CratesCnt: k.CratesCnt,
	}
}
