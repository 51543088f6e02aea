// Package main provides a speech plugin for macOS.
// It speaks recognized letters with the say command.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Letter string          `json:"letter"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// SayConfig is the per-binding configuration of the say action.
type SayConfig struct {
	Voice string `json:"voice"`
	// Rate is in words per minute; 0 keeps the system default.
	Rate int `json:"rate"`
}

// actionHandler defines a function type for handling specific actions.
type actionHandler func(letter string, config json.RawMessage) error

// actionHandlers maps action names to their handler functions.
var actionHandlers = map[string]actionHandler{
	"say": say,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	if err := handler(req.Letter, req.Config); err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	writeSuccessResponse()
}

// say speaks the letter.
func say(letter string, config json.RawMessage) error {
	args, err := sayArgs(letter, config)
	if err != nil {
		return err
	}
	output, err := exec.Command("say", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// sayArgs builds the say command line.
func sayArgs(letter string, config json.RawMessage) ([]string, error) {
	if letter == "" {
		return nil, fmt.Errorf("letter is required")
	}

	var cfg SayConfig
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	var args []string
	if cfg.Voice != "" {
		args = append(args, "-v", cfg.Voice)
	}
	if cfg.Rate > 0 {
		args = append(args, "-r", strconv.Itoa(cfg.Rate))
	}
	return append(args, letter), nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
