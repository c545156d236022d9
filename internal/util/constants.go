package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	QuestionBankDatabase = "database"
	QuestionBankObject   = "object"
)

const (
	SinkLog   = "log"
	SinkRedis = "redis"
	SinkSES   = "ses"
)

// 权限能力
const (
	CapabilityTakeAssessment = "take_assessment"
	CapabilityPreviewScore   = "preview_score"
)

const EventAssessmentSubmitted = "assessment_submitted"
