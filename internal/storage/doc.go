package storage

// Package storage provides a minimal persistence layer for the scheduler.
//
// It currently supports:
//   - Run log appends (one record per finished task run)
//   - Recent-run queries for status inspection across restarts
