package progress

import "context"

// Repository определяет порт хранилища прогресса учащихся.
type Repository interface {
	// Create сохраняет нового учащегося.
	Create(ctx context.Context, l *Learner) error

	// GetByID возвращает учащегося по идентификатору.
	// Возвращает ErrLearnerNotFound, если запись отсутствует.
	GetByID(ctx context.Context, id string) (*Learner, error)

	// Update сохраняет изменённого учащегося.
	Update(ctx context.Context, l *Learner) error

	// TopByXP возвращает учащихся с наибольшим XP.
	TopByXP(ctx context.Context, limit int) ([]*Learner, error)
}
