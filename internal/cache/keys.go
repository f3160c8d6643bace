package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(ownerID, jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s:%s", ownerID, jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

func EngagementAnalyticsKey(ownerID uuid.UUID) string {
	return fmt.Sprintf("cache:analytics:engagement:%s", ownerID)
}

func TopicAnalyticsKey(ownerID uuid.UUID) string {
	return fmt.Sprintf("cache:analytics:topics:%s", ownerID)
}
