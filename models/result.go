package models

import "fmt"

type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
	StatusInfo    ResultStatus = "info"
)

// OperationResult is what every public operation hands back to the
// chat/command layer: a status plus a human-readable message.
type OperationResult struct {
	Status  ResultStatus
	Message string
}

func SuccessResult(format string, args ...interface{}) OperationResult {
	return OperationResult{Status: StatusSuccess, Message: fmt.Sprintf(format, args...)}
}

func ErrorResult(format string, args ...interface{}) OperationResult {
	return OperationResult{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

func InfoResult(format string, args ...interface{}) OperationResult {
	return OperationResult{Status: StatusInfo, Message: fmt.Sprintf(format, args...)}
}
