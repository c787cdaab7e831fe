// Standalone mock pool for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockpool
//
// Then in another terminal:
//
//	go run ./cmd/minerwatch serve -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

func main() {
	fmt.Println("Mock pool starting on :9999")
	fmt.Println("Serving /api/accounts/{wallet} (open-ethereum-pool) and /user/{wallet} (nanopool)")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		online = make(map[string]int)
		mu     sync.Mutex
	)
	const rigs = 3

	// flip drifts the online count of wallet by one, at random.
	flip := func(wallet string) int {
		mu.Lock()
		defer mu.Unlock()
		n, ok := online[wallet]
		if !ok {
			n = rigs
		}
		if rand.Intn(5) == 0 {
			if n == rigs || (n > 0 && rand.Intn(2) == 0) {
				n--
			} else {
				n++
			}
			slog.Info("rig change", "wallet", wallet, "online", n)
		}
		online[wallet] = n
		return n
	}

	http.HandleFunc("/api/accounts/", func(w http.ResponseWriter, r *http.Request) {
		wallet := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
		n := flip(wallet)

		workers := make(map[string]any, rigs)
		for i := 0; i < rigs; i++ {
			hr := 0
			if i < n {
				hr = 95_000_000
			}
			workers[fmt.Sprintf("rig%d", i+1)] = map[string]any{"hr": hr}
		}
		writeJSON(w, map[string]any{
			"currentHashrate": n * 95_000_000,
			"workersOnline":   n,
			"workersOffline":  rigs - n,
			"workersTotal":    rigs,
			"workers":         workers,
		})
	})

	http.HandleFunc("/user/", func(w http.ResponseWriter, r *http.Request) {
		wallet := strings.TrimPrefix(r.URL.Path, "/user/")
		n := flip(wallet)

		workers := make([]map[string]any, 0, rigs)
		for i := 0; i < rigs; i++ {
			hr := "0.0"
			if i < n {
				hr = "95.2"
			}
			workers = append(workers, map[string]any{"id": fmt.Sprintf("rig%d", i+1), "hashrate": hr})
		}
		writeJSON(w, map[string]any{
			"status": true,
			"data": map[string]any{
				"hashrate": fmt.Sprintf("%.1f", float64(n)*95.2),
				"workers":  workers,
			},
		})
	})

	server := &http.Server{
		Addr:              ":9999",
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
