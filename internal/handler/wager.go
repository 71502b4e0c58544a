package handler

import (
	"strconv"
	"strings"
	"sync"
)

// wagerPrompt is an open "how many marbles?" question.
type wagerPrompt struct {
	ChallengeID string
	ChatID      int64
}

// wagerPrompts tracks which users owe a typed wager amount.
type wagerPrompts struct {
	mu      sync.Mutex
	pending map[int64]wagerPrompt
}

func newWagerPrompts() *wagerPrompts {
	return &wagerPrompts{pending: make(map[int64]wagerPrompt)}
}

// Open records that userID should type an amount for challengeID in chatID.
func (w *wagerPrompts) Open(userID, chatID int64, challengeID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[userID] = wagerPrompt{ChallengeID: challengeID, ChatID: chatID}
}

// Get returns the open prompt for userID in chatID.
func (w *wagerPrompts) Get(userID, chatID int64) (wagerPrompt, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.pending[userID]
	if !ok || p.ChatID != chatID {
		return wagerPrompt{}, false
	}
	return p, true
}

// Close drops the prompt for userID.
func (w *wagerPrompts) Close(userID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, userID)
}

// CloseChallenge drops any prompt pointing at challengeID.
func (w *wagerPrompts) CloseChallenge(challengeID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for userID, p := range w.pending {
		if p.ChallengeID == challengeID {
			delete(w.pending, userID)
		}
	}
}

// wagerInput is the parsed reply to a wager prompt.
type wagerInput struct {
	Cancel bool
	Amount int64
}

// parseWagerInput reads "cancel" or a whole number of marbles in [1, maxWager].
func parseWagerInput(text string, maxWager int64) (wagerInput, string) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "cancel" {
		return wagerInput{Cancel: true}, ""
	}

	amount, err := strconv.ParseInt(text, 10, 64)
	switch {
	case err != nil:
		return wagerInput{}, "Please enter a valid number, or 'cancel'."
	case amount <= 0:
		return wagerInput{}, "Please enter a positive number for the wager!"
	case amount > maxWager:
		return wagerInput{}, "Maximum wager is " + strconv.FormatInt(maxWager, 10) + " marbles!"
	}
	return wagerInput{Amount: amount}, ""
}

// parseChallengeArgs reads "@user [wager]".
func parseChallengeArgs(args []string, maxWager int64) (target string, wager int64, hasWager bool, problem string) {
	if len(args) == 0 {
		return "", 0, false, "Usage: /challenge @username [wager]"
	}
	target = strings.TrimPrefix(strings.TrimSpace(args[0]), "@")
	if target == "" {
		return "", 0, false, "Usage: /challenge @username [wager]"
	}
	if len(args) < 2 {
		return target, 0, false, ""
	}

	in, problem := parseWagerInput(args[1], maxWager)
	if problem != "" || in.Cancel {
		if problem == "" {
			problem = "Please enter a valid number for the wager."
		}
		return "", 0, false, problem
	}
	return target, in.Amount, true, ""
}
