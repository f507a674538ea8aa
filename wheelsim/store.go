// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wheelsim

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/c2FmZQ/storage"
)

const historyFile = "rounds/history.json"

type roundHistory struct {
	Rounds []Round `json:"rounds"`
}

// RoundStore persists the round history so a restarted simulator shows the same
// past rounds.
type RoundStore struct {
	storage *storage.Storage
	mu      sync.Mutex
}

// NewRoundStore creates a new RoundStore.
func NewRoundStore(s *storage.Storage) *RoundStore {
	return &RoundStore{storage: s}
}

// Save replaces the stored history.
func (rs *RoundStore) Save(rounds []Round) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.storage.SaveDataFile(historyFile, &roundHistory{Rounds: rounds}); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// Load returns the stored history, or nothing if none was saved yet.
func (rs *RoundStore) Load() ([]Round, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	var h roundHistory
	if err := rs.storage.ReadDataFile(historyFile, &h); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	if n := len(h.Rounds); n > HistorySize {
		h.Rounds = h.Rounds[n-HistorySize:]
	}
	return h.Rounds, nil
}
