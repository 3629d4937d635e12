package inmemdb

import (
	"encoding/json"
	"sync"

	"github.com/fetc/proposals/core/attachment"
	"github.com/fetc/proposals/core/proposal"
	"github.com/fetc/proposals/core/user"
)

type (
	// DB keeps every table in memory. Each table has its own lock.
	DB struct {
		user       *userTable
		proposal   *proposalTable
		attachment *attachmentTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	proposalTable struct {
		sync.RWMutex
		table map[string]*proposal.Proposal
		// allocated sequences per year and versions per chain survive deletions
		counters map[int]int
		chains   map[string]int
	}

	attachmentTable struct {
		sync.RWMutex
		table map[string]*attachment.Attachment
	}
)

func Open() *DB {
	return &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		proposal:   &proposalTable{table: make(map[string]*proposal.Proposal), counters: make(map[int]int), chains: make(map[string]int)},
		attachment: &attachmentTable{table: make(map[string]*attachment.Attachment)},
	}
}

// clone deep copies v so stored rows never share slices with callers.
func clone[T any](v T) T {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return out
}
