package telemetry

import (
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InstrumentGorm registers the otelgorm plugin so every query becomes a child
// span of the request. Query variables stay out of spans; they carry emails
// and addresses.
func InstrumentGorm(db *gorm.DB, dbSystem string, logger *zap.Logger) error {
	if err := db.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName(dbSystem),
		otelgorm.WithoutQueryVariables(),
	)); err != nil {
		return fmt.Errorf("register otelgorm: %w", err)
	}
	logger.Info("Database tracing enabled", zap.String("db_system", dbSystem))
	return nil
}
