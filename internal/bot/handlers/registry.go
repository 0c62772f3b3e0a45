package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler represents a command handler with its match rule and middleware.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands returns every bot command keyed by its name. All of
// them are restricted to the allowed users.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	allowed := []tgbot.Middleware{AllowedUsersOnly(deps)}

	command := func(pattern string, h tgbot.HandlerFunc) RegisteredHandler {
		return RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     pattern,
			Handler:     h,
			Middleware:  allowed,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
		}
	}

	return map[string]RegisteredHandler{
		"/start":    command("start", NewStartHandler(deps)),
		"/help":     command("help", NewHelpHandler(deps)),
		"/timezone": command("timezone", NewTimezoneHandler(deps)),
	}
}
