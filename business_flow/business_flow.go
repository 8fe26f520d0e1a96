// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"encoding/json"
	"log"

	"github.com/healthiphi/founder-pass/config"
	"github.com/healthiphi/founder-pass/models"
	"github.com/healthiphi/founder-pass/repository"
	"github.com/healthiphi/founder-pass/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// createAuditLog records an audit entry. Failures are logged, never returned to the caller's flow.
func createAuditLog(ctx context.Context, auditRepo repository.AuditLogRepository, pledge *models.Pledge, action, description string, success bool, errMsg *string, metadata *ClientMetadata) error {
	if auditRepo == nil {
		return nil
	}

	entry := &models.AuditLog{
		Action:       action,
		Description:  &description,
		Success:      &success,
		ErrorMessage: errMsg,
	}
	if pledge != nil && pledge.ID != 0 {
		entry.PledgeID = utils.ToPtr(pledge.ID)
	}
	if metadata != nil {
		if metadata.IPAddress != "" {
			entry.IPAddress = utils.ToPtr(metadata.IPAddress)
		}
		if metadata.UserAgent != "" {
			entry.UserAgent = utils.ToPtr(metadata.UserAgent)
		}
		if metadata.RequestID != "" {
			entry.RequestID = utils.ToPtr(metadata.RequestID)
		}
		if len(metadata.Additional) > 0 {
			if raw, err := json.Marshal(metadata.Additional); err == nil {
				entry.Metadata = raw
			}
		}
	}

	if err := auditRepo.Save(ctx, entry); err != nil {
		log.Printf("audit: failed to record %s: %v", action, err)
		return err
	}
	return nil
}

// redisKey prefixes a cache key with the configured namespace
func redisKey(cfg config.CacheConfig, key string) string {
	return cfg.RedisPrefix + key
}
