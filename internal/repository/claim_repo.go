package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs-lzh/seat-booking/internal/model"
)

type ClaimRepo interface {
	WithTx(tx *gorm.DB) ClaimRepo
	Acquire(ctx context.Context, claim *model.SeatClaim, now time.Time) (bool, error)
	ListByHandle(ctx context.Context, handleID string) ([]model.SeatClaim, error)
	ListLiveByHolder(ctx context.Context, showtimeID uint, holderToken string, now time.Time) ([]model.SeatClaim, error)
	ListLiveByShowtime(ctx context.Context, showtimeID uint, now time.Time) ([]model.SeatClaim, error)
	ConsumeLive(ctx context.Context, handleID string, now time.Time) (int, error)
	DeleteByHandle(ctx context.Context, handleID, holderToken string) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) ([]model.SeatClaim, error)
}

type claimRepoGorm struct {
	db *gorm.DB
}

var _ ClaimRepo = (*claimRepoGorm)(nil)

func NewClaimRepoGorm(db *gorm.DB) *claimRepoGorm {
	return &claimRepoGorm{db: db}
}

func (r *claimRepoGorm) WithTx(tx *gorm.DB) ClaimRepo {
	return &claimRepoGorm{db: tx}
}

// Acquire inserts claim, or takes over the existing row for the same seat
// when that row has expired or already belongs to the same holder. It
// reports false when the seat is held by someone else.
func (r *claimRepoGorm) Acquire(ctx context.Context, claim *model.SeatClaim, now time.Time) (bool, error) {
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "showtime_id"}, {Name: "seat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"id", "handle_id", "holder_token", "expires_at", "created_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Or(
				clause.Expr{SQL: "seat_claims.expires_at <= ?", Vars: []any{now}},
				clause.Expr{SQL: "seat_claims.holder_token = ?", Vars: []any{claim.HolderToken}},
			),
		}},
	}
	res := r.db.WithContext(ctx).Clauses(onConflict).Create(claim)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *claimRepoGorm) ListByHandle(ctx context.Context, handleID string) ([]model.SeatClaim, error) {
	return gorm.G[model.SeatClaim](r.db).Where("handle_id = ?", handleID).Order("seat_id").Find(ctx)
}

func (r *claimRepoGorm) ListLiveByHolder(ctx context.Context, showtimeID uint, holderToken string, now time.Time) ([]model.SeatClaim, error) {
	return gorm.G[model.SeatClaim](r.db).
		Where("showtime_id = ? AND holder_token = ? AND expires_at > ?", showtimeID, holderToken, now).
		Order("seat_id").
		Find(ctx)
}

func (r *claimRepoGorm) ListLiveByShowtime(ctx context.Context, showtimeID uint, now time.Time) ([]model.SeatClaim, error) {
	return gorm.G[model.SeatClaim](r.db).
		Where("showtime_id = ? AND expires_at > ?", showtimeID, now).
		Find(ctx)
}

// ConsumeLive deletes the live claims of a handle and returns how many were
// removed. Expired claims of the handle are left for the sweeper.
func (r *claimRepoGorm) ConsumeLive(ctx context.Context, handleID string, now time.Time) (int, error) {
	return gorm.G[model.SeatClaim](r.db).Where("handle_id = ? AND expires_at > ?", handleID, now).Delete(ctx)
}

// DeleteByHandle removes the claims of a handle. Only the holder that took
// them can remove them.
func (r *claimRepoGorm) DeleteByHandle(ctx context.Context, handleID, holderToken string) (int, error) {
	return gorm.G[model.SeatClaim](r.db).Where("handle_id = ? AND holder_token = ?", handleID, holderToken).Delete(ctx)
}

// DeleteExpired removes every claim past its expiry and returns the removed
// rows so callers can invalidate what they cached about them.
func (r *claimRepoGorm) DeleteExpired(ctx context.Context, now time.Time) ([]model.SeatClaim, error) {
	expired, err := gorm.G[model.SeatClaim](r.db).Where("expires_at <= ?", now).Find(ctx)
	if err != nil || len(expired) == 0 {
		return nil, err
	}
	ids := make([]string, len(expired))
	for i, c := range expired {
		ids[i] = c.ID
	}
	// re-check expiry so a row taken over in between is not removed
	if _, err := gorm.G[model.SeatClaim](r.db).Where("id IN ? AND expires_at <= ?", ids, now).Delete(ctx); err != nil {
		return nil, err
	}
	return expired, nil
}
