//go:build ignore
// +build ignore

// Package main provides a manual concurrency stress test for the checkout API.
//
// Usage:
//
//	TOKEN=<jwt> go run ./scripts/concurrency_test.go <book_id> <user1_id> [user2_id ...]
//
// Or use the convenience environment variables:
//
//	TOKEN=<jwt> BOOK_ID=<uuid> USER_IDS=<uuid1>,<uuid2>,... go run ./scripts/concurrency_test.go
//
// What it does:
//  1. Fires N goroutines (one per user) all attempting to check out the same book simultaneously.
//  2. Prints how many succeeded vs. got NO_COPIES_AVAILABLE.
//  3. If the book had K available copies, exactly K requests must succeed; the
//     conditional decrement plus the partial unique index on open checkouts
//     guarantees this at the database level.
//
// Prerequisites:
//   - Server must be running with DATABASE_URL set and the schema migrated.
//   - A book with some copies, N registered users, and a valid access token.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const defaultServerAddr = "http://localhost:8080"

type checkoutResult struct {
	UserID     string
	StatusCode int
	Code       string // machine error code on failure
	Err        error
}

func main() {
	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = defaultServerAddr
	}
	token := os.Getenv("TOKEN")
	if token == "" {
		log.Fatal("TOKEN env with a valid access token is required")
	}

	bookID := os.Getenv("BOOK_ID")
	userIDsEnv := os.Getenv("USER_IDS")

	var userIDs []string
	if userIDsEnv != "" {
		userIDs = strings.Split(userIDsEnv, ",")
	}

	// Support positional args: script <book_id> [user_ids...]
	args := os.Args[1:]
	if len(args) >= 1 {
		bookID = args[0]
	}
	if len(args) >= 2 {
		userIDs = args[1:]
	}

	if bookID == "" {
		log.Fatal("Usage: TOKEN=<jwt> BOOK_ID=<uuid> USER_IDS=<u1,u2,...> go run ./scripts/concurrency_test.go\n" +
			"  or: TOKEN=<jwt> go run ./scripts/concurrency_test.go <book_id> <user1_id> [user2_id ...]")
	}
	if len(userIDs) == 0 {
		log.Fatal("At least one user ID must be provided via USER_IDS env or positional args")
	}

	fmt.Printf("=== Checkout Concurrency Test ===\n")
	fmt.Printf("Server : %s\n", serverAddr)
	fmt.Printf("Book   : %s\n", bookID)
	fmt.Printf("Users  : %d\n\n", len(userIDs))

	results := make([]checkoutResult, len(userIDs))
	var wg sync.WaitGroup

	// Fire all goroutines simultaneously using a barrier.
	start := make(chan struct{})

	for i, uid := range userIDs {
		wg.Add(1)
		go func(idx int, userID string) {
			defer wg.Done()
			<-start // wait for the barrier
			results[idx] = attemptCheckout(serverAddr, token, bookID, strings.TrimSpace(userID))
		}(i, uid)
	}

	fmt.Println("Firing all requests simultaneously...")
	close(start)

	wg.Wait()
	fmt.Println("All requests completed.")
	fmt.Println()

	var succeeded, noCopies, failures int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failures++
			fmt.Printf("  [ERR ] user=%-38s err=%v\n", r.UserID, r.Err)
		case r.StatusCode == http.StatusOK:
			succeeded++
			fmt.Printf("  [CHCK] user=%-38s status=%d\n", r.UserID, r.StatusCode)
		case r.Code == "NO_COPIES_AVAILABLE":
			noCopies++
			fmt.Printf("  [FULL] user=%-38s status=%d code=%s\n", r.UserID, r.StatusCode, r.Code)
		default:
			failures++
			fmt.Printf("  [FAIL] user=%-38s status=%d code=%s\n", r.UserID, r.StatusCode, r.Code)
		}
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Checkouts : %d\n", succeeded)
	fmt.Printf("No copies : %d\n", noCopies)
	fmt.Printf("Failures  : %d\n", failures)
	fmt.Printf("Total     : %d\n\n", len(userIDs))

	fmt.Println("--- Invariant Check ---")
	fmt.Println("available_copies is decremented by a conditional UPDATE (available_copies > 0),")
	fmt.Println("so the number of checkouts above must equal the copies that were available.")
	fmt.Println("Cross-check with GET /api/library/audit: the findings list must be empty.")

	if failures > 0 {
		fmt.Printf("\n[WARNING] %d request(s) failed — check server logs for details.\n", failures)
		os.Exit(1)
	}
}

// attemptCheckout sends POST /api/library/checkout for the given user and
// parses the machine error code on failure.
func attemptCheckout(serverAddr, token, bookID, userID string) checkoutResult {
	url := fmt.Sprintf("%s/api/library/checkout", serverAddr)
	body := fmt.Sprintf(`{"book_id":%q,"user_id":%q}`, bookID, userID)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		return checkoutResult{UserID: userID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return checkoutResult{UserID: userID, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var parsed struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return checkoutResult{UserID: userID, StatusCode: resp.StatusCode, Err: fmt.Errorf("bad JSON: %s", raw)}
	}

	return checkoutResult{
		UserID:     userID,
		StatusCode: resp.StatusCode,
		Code:       parsed.Error.Code,
	}
}
