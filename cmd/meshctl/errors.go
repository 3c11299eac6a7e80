package main

import "errors"

// Common errors
var (
	ErrLoadConfig  = errors.New("loading config")
	ErrOpenEngine  = errors.New("opening engine")
	ErrBuildConfig = errors.New("building network from config")
)

// Up/Down errors
var (
	ErrApplyHost  = errors.New("applying host")
	ErrRevertHost = errors.New("reverting host")
)

// Mock errors
var (
	ErrApplyMockNet  = errors.New("applying mock network")
	ErrRevertMockNet = errors.New("reverting mock network")
)
