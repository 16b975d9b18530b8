package observability

import (
	"testing"
	"time"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordStage("native-packages", "ok", 12*time.Millisecond)
	RecordAssetDownload("fetched", 2048)
	RecordAssetDownload("skipped", 0)
	RecordHTTPRequest("voiced.local", "GET", "/health", 200, 8*time.Millisecond)
	RecordSkillInvocation("skill.booking", "book", "ok")
}
