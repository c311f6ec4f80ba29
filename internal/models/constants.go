// Package models contains data types and constants for the assistant platform API.
package models

import (
	"net/url"
	"strings"
)

// DefaultAPIURL is used when neither config nor environment names a backend
const DefaultAPIURL = "http://localhost:8000"

// DefaultChatTitle is shown for conversations the backend has not titled yet
const DefaultChatTitle = "Chat"

// Endpoint paths, relative to the API base URL
const (
	EndpointHistory   = "/chat/history"
	EndpointCreate    = "/chat/create"
	EndpointFindVerse = "/chat/find_ayat"
	EndpointStream    = "/assistant/stream"
)

// EndpointChat returns the path of a single conversation (rename, delete)
func EndpointChat(id string) string {
	return "/chat/" + url.PathEscape(id)
}

// EndpointMessage returns the path for appending a message to a conversation
func EndpointMessage(id string) string {
	return EndpointChat(id) + "/message"
}

// JoinURL appends an endpoint path to a base URL without doubling slashes
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Header names used on every request
const (
	HeaderRequestID = "X-Request-ID"
	HeaderAuth      = "Authorization"
)

// DefaultHeaders returns the headers sent with JSON requests
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}
}

// StreamHeaders returns the headers sent when opening the assistant stream
func StreamHeaders() map[string]string {
	return map[string]string{
		"Accept":        "text/event-stream",
		"Content-Type":  "application/json",
		"Cache-Control": "no-cache",
	}
}
