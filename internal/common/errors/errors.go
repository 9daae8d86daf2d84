// Package errors provides the error catalogue shared by the analysis pipeline,
// the matching layer and the workflow workers, plus the mapping of those
// errors onto BPMN error codes.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Analysis jobs
	ErrCodeJobNotFound       ErrorCode = "JOB_NOT_FOUND"
	ErrCodeInvalidWorkUnits  ErrorCode = "INVALID_WORK_UNITS"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeQueueFull         ErrorCode = "QUEUE_FULL"
	ErrCodeAnalysisTimeout   ErrorCode = "ANALYSIS_TIMEOUT"
	ErrCodeAnalysisFailed    ErrorCode = "ANALYSIS_FAILED"
	ErrCodeMalformedAnalysis ErrorCode = "MALFORMED_ANALYSIS"
	ErrCodeNoPendingAnalysis ErrorCode = "NO_PENDING_ANALYSIS"

	// Matching and feed
	ErrCodeSeekerNotFound       ErrorCode = "SEEKER_NOT_FOUND"
	ErrCodeOpportunityNotFound  ErrorCode = "OPPORTUNITY_NOT_FOUND"
	ErrCodeEmbeddingUnavailable ErrorCode = "EMBEDDING_UNAVAILABLE"
	ErrCodeRescoreFailed        ErrorCode = "RESCORE_FAILED"
	ErrCodeFeedBuildFailed      ErrorCode = "FEED_BUILD_FAILED"

	// Infrastructure
	ErrCodePersistenceFailed      ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeQueryTimeout           ErrorCode = "QUERY_TIMEOUT"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeInputValidationFailed  ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the sentinel or collaborator error the StandardError was built from.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newStandard(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewJobNotFoundError is returned by polling for an unknown or evicted job.
func NewJobNotFoundError(jobID string) *StandardError {
	return newStandard(ErrCodeJobNotFound, "Analysis job not found", "jobId: "+jobID, false, ErrJobNotFound)
}

// NewInvalidWorkUnitsError rejects a submission before a job is created.
func NewInvalidWorkUnitsError(details string) *StandardError {
	return newStandard(ErrCodeInvalidWorkUnits, "Invalid repository list", details, false, ErrInvalidWorkUnits)
}

func NewInvalidTransitionError(from, to string) *StandardError {
	return newStandard(ErrCodeInvalidTransition, "Invalid job status transition",
		fmt.Sprintf("from: %s, to: %s", from, to), false, ErrInvalidTransition)
}

func NewQueueFullError(queue string) *StandardError {
	return newStandard(ErrCodeQueueFull, "Background queue is full", "queue: "+queue, true, ErrQueueFull)
}

// NewAnalysisTimeoutError is recorded when a single work unit exceeds its budget.
func NewAnalysisTimeoutError(unit string) *StandardError {
	return newStandard(ErrCodeAnalysisTimeout, "Analysis timed out", "unit: "+unit, true, nil)
}

func NewAnalysisFailedError(unit string, err error) *StandardError {
	return newStandard(ErrCodeAnalysisFailed, "Analysis failed", fmt.Sprintf("unit: %s, error: %v", unit, err), true, err)
}

func NewMalformedAnalysisError(details string) *StandardError {
	return newStandard(ErrCodeMalformedAnalysis, "Analysis result is malformed", details, false, nil)
}

func NewNoPendingAnalysisError(userID string) *StandardError {
	return newStandard(ErrCodeNoPendingAnalysis, "No pending analysis for user", "userId: "+userID, false, ErrNoPendingAnalysis)
}

func NewSeekerNotFoundError(seekerID string) *StandardError {
	return newStandard(ErrCodeSeekerNotFound, "Seeker not found", "seekerId: "+seekerID, false, ErrSeekerNotFound)
}

func NewOpportunityNotFoundError(opportunityID string) *StandardError {
	return newStandard(ErrCodeOpportunityNotFound, "Opportunity not found", "opportunityId: "+opportunityID, false, ErrOpportunityNotFound)
}

func NewEmbeddingUnavailableError(err error) *StandardError {
	return newStandard(ErrCodeEmbeddingUnavailable, "Embedding service unavailable", fmt.Sprint(err), true, err)
}

func NewRescoreFailedError(subject string, err error) *StandardError {
	return newStandard(ErrCodeRescoreFailed, "Rescoring failed", fmt.Sprintf("subject: %s, error: %v", subject, err), true, err)
}

func NewFeedBuildFailedError(seekerID string, err error) *StandardError {
	return newStandard(ErrCodeFeedBuildFailed, "Feed build failed", fmt.Sprintf("seekerId: %s, error: %v", seekerID, err), true, err)
}

// NewPersistenceFailedError wraps a repository or job store failure.
func NewPersistenceFailedError(operation string, err error) *StandardError {
	return newStandard(ErrCodePersistenceFailed, "Persistence operation failed",
		fmt.Sprintf("operation: %s, error: %v", operation, err), true, err)
}

func NewQueryTimeoutError(queryType string) *StandardError {
	return newStandard(ErrCodeQueryTimeout, "Database query timeout", "queryType: "+queryType, true, nil)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newStandard(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %v", channel, err), true, err)
}

func NewInputValidationError(details string) *StandardError {
	return newStandard(ErrCodeInputValidationFailed, "Input validation failed", details, false, nil)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal codes onto the codes BPMN boundary events catch.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeJobNotFound:            "JOB_NOT_FOUND",
	ErrCodeInvalidWorkUnits:       "INVALID_REPOSITORIES",
	ErrCodeInvalidTransition:      "INVALID_TRANSITION",
	ErrCodeQueueFull:              "QUEUE_FULL",
	ErrCodeAnalysisTimeout:        "ANALYSIS_TIMEOUT",
	ErrCodeAnalysisFailed:         "ANALYSIS_FAILED",
	ErrCodeMalformedAnalysis:      "ANALYSIS_FAILED",
	ErrCodeNoPendingAnalysis:      "NO_PENDING_ANALYSIS",
	ErrCodeSeekerNotFound:         "SEEKER_NOT_FOUND",
	ErrCodeOpportunityNotFound:    "OPPORTUNITY_NOT_FOUND",
	ErrCodeEmbeddingUnavailable:   "EMBEDDING_UNAVAILABLE",
	ErrCodeRescoreFailed:          "RESCORE_FAILED",
	ErrCodeFeedBuildFailed:        "FEED_BUILD_FAILED",
	ErrCodePersistenceFailed:      "PERSISTENCE_FAILED",
	ErrCodeQueryTimeout:           "QUERY_TIMEOUT",
	ErrCodeNotificationSendFailed: "NOTIFICATION_SEND_FAILED",
	ErrCodeInputValidationFailed:  "INPUT_VALIDATION_FAILED",
}

// GetRetryCount returns how many engine retries a code is worth.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodePersistenceFailed,
		ErrCodeRescoreFailed,
		ErrCodeFeedBuildFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeQueueFull,
		ErrCodeEmbeddingUnavailable:
		return 2

	case ErrCodeAnalysisTimeout:
		return 1

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard normalizes any error into a StandardError. Sentinels are mapped
// onto their codes; anything else becomes INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if As(err, &stdErr) {
		return stdErr
	}

	switch {
	case Is(err, ErrJobNotFound):
		return newStandard(ErrCodeJobNotFound, "Analysis job not found", err.Error(), false, err)
	case Is(err, ErrInvalidWorkUnits):
		return newStandard(ErrCodeInvalidWorkUnits, "Invalid repository list", err.Error(), false, err)
	case Is(err, ErrInvalidTransition):
		return newStandard(ErrCodeInvalidTransition, "Invalid job status transition", err.Error(), false, err)
	case Is(err, ErrQueueFull):
		return newStandard(ErrCodeQueueFull, "Background queue is full", err.Error(), true, err)
	case Is(err, ErrNoPendingAnalysis):
		return newStandard(ErrCodeNoPendingAnalysis, "No pending analysis for user", err.Error(), false, err)
	case Is(err, ErrSeekerNotFound):
		return newStandard(ErrCodeSeekerNotFound, "Seeker not found", err.Error(), false, err)
	case Is(err, ErrOpportunityNotFound):
		return newStandard(ErrCodeOpportunityNotFound, "Opportunity not found", err.Error(), false, err)
	}

	return newStandard(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "JOB") || strings.Contains(codeStr, "ANALYSIS") || strings.Contains(codeStr, "WORK_UNITS"):
		return "ANALYSIS"
	case strings.Contains(codeStr, "SEEKER") || strings.Contains(codeStr, "OPPORTUNITY") || strings.Contains(codeStr, "RESCORE"):
		return "MATCHING"
	case strings.Contains(codeStr, "EMBEDDING"):
		return "AI"
	case strings.Contains(codeStr, "FEED"):
		return "FEED"
	case strings.Contains(codeStr, "PERSISTENCE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
