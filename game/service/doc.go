// Package service provides the business logic layer for the memory match game.
//
// The service package implements:
//   - Multi-session game management
//   - Player reveals, bulk reveals and CPU opponent turns
//   - Scoreboards, move history and game events
//   - Recovery from stored sessions whose game state is corrupt
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages deck configuration loading and validation.
// EventPublisher receives the events produced by every call.
//
// Concurrency:
//
// Every Session carries its own lock. The service holds it from the moment a
// session is fetched until its new state is saved, so two requests for the
// same session never interleave, while different sessions proceed in
// parallel.
//
// Usage:
//
//	sessionMgr := session.NewManager(logger)
//	configMgr, _ := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr, service.WithLogger(logger))
//
//	info, err := gameService.CreateSession(ctx, "classic")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	outcome, err := gameService.Flip(ctx, info.ID, 3)
package service
