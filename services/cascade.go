package services

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"slr-manager/apperr"
	"slr-manager/correlation"
	"slr-manager/providers"
)

// deletionPlan sammelt während einer lokalen Kaskade die Formulare, deren
// Instanzen im Search-Service gelöscht werden müssen.
type deletionPlan struct {
	formIDs []uint
}

func (p *deletionPlan) addForm(id uint) {
	p.formIDs = append(p.formIDs, id)
}

// CascadeOrchestrator führt lokale Kaskaden-Löschungen in einer Transaktion aus und
// löscht anschließend, noch vor dem Commit, die Formular-Instanzen im Search-Service.
//
// Der Remote-Aufruf ist nicht Teil der lokalen Transaktion. Schlägt der Commit nach
// erfolgreichen Remote-Löschungen fehl, bleiben die lokalen Formulare bestehen und die
// Instanzen sind weg. Die Gegenseite löscht idempotent, ein erneuter Versuch konvergiert.
type CascadeOrchestrator struct {
	Remote providers.SearchService
	Logger *zap.Logger
}

// NewCascadeOrchestrator erstellt einen neuen CascadeOrchestrator.
func NewCascadeOrchestrator(remote providers.SearchService, logger *zap.Logger) *CascadeOrchestrator {
	return &CascadeOrchestrator{Remote: remote, Logger: logger}
}

// DeleteFormInstances löscht die Instanzen eines Formulars im Search-Service.
func (o *CascadeOrchestrator) DeleteFormInstances(ctx context.Context, formID uint) error {
	err := o.Remote.DeleteFormInstances(ctx, formID)
	outcome := "ok"
	switch {
	case err == nil:
	case apperr.HasKind(err, apperr.KindRemoteServiceUnavailable):
		outcome = "unavailable"
	default:
		outcome = "failed"
	}
	remoteCallsCounter.WithLabelValues("delete_form_instances", outcome).Inc()
	if err != nil {
		o.Logger.Error("Remote form instance delete failed",
			zap.Uint("form_id", formID),
			zap.String("correlation_id", correlation.From(ctx)),
			zap.Error(err))
	}
	return err
}

// Run führt fn in einer lokalen Transaktion aus. Nachdem fn erfolgreich war, werden
// die gesammelten Formulare remote gelöscht; der erste Fehler bricht ab und rollt zurück.
func (o *CascadeOrchestrator) Run(ctx context.Context, db *gorm.DB, aggregate string, id uint, fn func(tx *gorm.DB, plan *deletionPlan) error) error {
	ctx, cid := correlation.Ensure(ctx)
	log := o.Logger.With(
		zap.String("aggregate", aggregate),
		zap.Uint("id", id),
		zap.String("correlation_id", cid))

	var remoteDone []uint
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan := &deletionPlan{}
		if err := fn(tx, plan); err != nil {
			return err
		}
		for _, formID := range plan.formIDs {
			if err := o.DeleteFormInstances(ctx, formID); err != nil {
				return err
			}
			remoteDone = append(remoteDone, formID)
		}
		return nil
	})
	if err != nil {
		if len(remoteDone) > 0 {
			remoteOrphanFormsCounter.Add(float64(len(remoteDone)))
			log.Error("Local cascade rolled back after remote form instances were deleted",
				zap.Uints("form_ids", remoteDone), zap.Error(err))
		}
		return dbErr(err, "%s cascade", aggregate)
	}

	cascadeDeletionsCounter.WithLabelValues(aggregate).Inc()
	log.Info("Cascade deletion committed", zap.Uints("remote_form_ids", remoteDone))
	return nil
}
