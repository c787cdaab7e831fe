package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

// mockAccount tracks the simulated rigs of one wallet.
type mockAccount struct {
	online       int
	total        int
	nextChangeAt time.Time
}

// StartMockPool runs an open-ethereum-pool style API on addr. Every wallet
// has four rigs; roughly every 20-60 seconds one of them goes offline or
// comes back, and offline rigs report a zero hashrate.
func StartMockPool(addr string) {
	var (
		accounts = make(map[string]*mockAccount)
		mu       sync.Mutex
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/accounts/", func(w http.ResponseWriter, r *http.Request) {
		wallet := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
		if wallet == "" {
			http.NotFound(w, r)
			return
		}

		mu.Lock()
		acc, exists := accounts[wallet]
		if !exists {
			acc = &mockAccount{online: 4, total: 4, nextChangeAt: nextChange()}
			accounts[wallet] = acc
		}
		if time.Now().After(acc.nextChangeAt) {
			before := acc.online
			if acc.online == acc.total || (acc.online > 0 && rand.Intn(2) == 0) {
				acc.online--
			} else {
				acc.online++
			}
			acc.nextChangeAt = nextChange()
			slog.Info("rig change", "wallet", wallet, "from", before, "to", acc.online)
		}
		resp := accountResponse(acc)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock pool error", "error", err)
	}
}

func nextChange() time.Time {
	return time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
}

// accountResponse renders acc in the open-ethereum-pool account layout.
func accountResponse(acc *mockAccount) map[string]any {
	workers := make(map[string]any, acc.total)
	for i := 0; i < acc.total; i++ {
		hr := 0
		if i < acc.online {
			hr = 90_000_000 + rand.Intn(20_000_000)
		}
		workers[fmt.Sprintf("rig%d", i+1)] = map[string]any{"hr": hr, "offline": i >= acc.online}
	}

	return map[string]any{
		"currentHashrate": acc.online * 100_000_000,
		"workersOnline":   acc.online,
		"workersOffline":  acc.total - acc.online,
		"workersTotal":    acc.total,
		"workers":         workers,
	}
}
