package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/harfbaz/harfbaz-server/internal/hub"
)

// Postgres persists records through gorm. Change notifications still
// fan out through the in-process hub: this server is the single
// authoritative writer, so co-locating the feed with the writes keeps
// delivery ordered without a listener on the database.
type Postgres struct {
	db     *gorm.DB
	events *hub.Hub[Event]
}

func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true, // surface duplicate keys as gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Room{}, &Player{}, &Answer{}, &Vote{}, &ScoredRound{}); err != nil {
		return nil, err
	}
	return &Postgres{db: db, events: hub.New[Event]()}, nil
}

func (p *Postgres) CreateRoom(ctx context.Context, room Room) (Room, error) {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	room.CreatedAt = time.Now()
	err := p.db.WithContext(ctx).Create(&room).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return Room{}, ErrCodeTaken
	}
	if err != nil {
		return Room{}, err
	}
	return room, nil
}

func (p *Postgres) RoomByID(ctx context.Context, id string) (Room, error) {
	var room Room
	err := p.db.WithContext(ctx).First(&room, "id = ?", id).Error
	return room, mapErr(err)
}

func (p *Postgres) RoomByCode(ctx context.Context, code string) (Room, error) {
	var room Room
	err := p.db.WithContext(ctx).First(&room, "code = ?", strings.ToUpper(code)).Error
	return room, mapErr(err)
}

func (p *Postgres) UpdateRoom(ctx context.Context, room Room) error {
	res := p.db.WithContext(ctx).Model(&Room{ID: room.ID}).Select("*").Omit("created_at").Updates(&room)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	p.events.Publish(room.ID, RoomChanged{Room: room})
	return nil
}

func (p *Postgres) DeleteRoom(ctx context.Context, id string) error {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&Player{}, &Answer{}, &Vote{}, &ScoredRound{}} {
			if err := tx.Where("room_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&Room{ID: id})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.events.Close(id)
	return nil
}

func (p *Postgres) UpsertPlayer(ctx context.Context, pl Player) error {
	if pl.JoinedAt.IsZero() {
		pl.JoinedAt = time.Now()
	}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&pl).Error
	if err != nil {
		return err
	}
	p.events.Publish(pl.RoomID, PlayerSetChanged{})
	return nil
}

func (p *Postgres) PlayerByID(ctx context.Context, id string) (Player, error) {
	var pl Player
	err := p.db.WithContext(ctx).First(&pl, "id = ?", id).Error
	return pl, mapErr(err)
}

func (p *Postgres) Players(ctx context.Context, roomID string) ([]Player, error) {
	var out []Player
	err := p.db.WithContext(ctx).Where("room_id = ?", roomID).Order("joined_at").Find(&out).Error
	return out, err
}

func (p *Postgres) DeletePlayer(ctx context.Context, id string) error {
	var pl Player
	if err := p.db.WithContext(ctx).First(&pl, "id = ?", id).Error; err != nil {
		return mapErr(err)
	}
	if err := p.db.WithContext(ctx).Delete(&Player{ID: id}).Error; err != nil {
		return err
	}
	p.events.Publish(pl.RoomID, PlayerSetChanged{})
	return nil
}

func (p *Postgres) ResetScores(ctx context.Context, roomID string) error {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Player{}).Where("room_id = ?", roomID).Update("score", 0).Error; err != nil {
			return err
		}
		return tx.Where("room_id = ?", roomID).Delete(&ScoredRound{}).Error
	})
	if err != nil {
		return err
	}
	p.events.Publish(roomID, PlayerSetChanged{})
	return nil
}

func (p *Postgres) UpsertAnswer(ctx context.Context, a Answer) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.SubmittedAt = time.Now()

	op := OpInsert
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prior Answer
		err := tx.Where("room_id = ? AND round = ? AND session_id = ? AND player_id = ?",
			a.RoomID, a.Round, a.SessionID, a.PlayerID).First(&prior).Error
		switch {
		case err == nil:
			a.ID = prior.ID
			op = OpUpdate
			return tx.Model(&Answer{ID: prior.ID}).Updates(map[string]any{
				"answers":      a.Answers,
				"submitted_at": a.SubmittedAt,
			}).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&a).Error
		default:
			return err
		}
	})
	if err != nil {
		return err
	}
	p.events.Publish(a.RoomID, AnswerChanged{Op: op, Answer: a})
	return nil
}

func (p *Postgres) Answers(ctx context.Context, roomID string, round int, sessionID string) ([]Answer, error) {
	var out []Answer
	err := p.db.WithContext(ctx).
		Where("room_id = ? AND round = ? AND session_id = ?", roomID, round, sessionID).
		Find(&out).Error
	return out, err
}

func (p *Postgres) CountAnswers(ctx context.Context, roomID string, round int, sessionID string) (int, error) {
	var n int64
	err := p.db.WithContext(ctx).Model(&Answer{}).
		Where("room_id = ? AND round = ? AND session_id = ?", roomID, round, sessionID).
		Count(&n).Error
	return int(n), err
}

func (p *Postgres) DeleteAnswers(ctx context.Context, roomID string) error {
	return p.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&Answer{}).Error
}

func (p *Postgres) ToggleVote(ctx context.Context, v Vote) (bool, Vote, error) {
	if v.VoterID == v.TargetID {
		return false, Vote{}, ErrInvalidTarget
	}

	var cast bool
	var stored Vote
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room Room
		if err := tx.First(&room, "id = ?", v.RoomID).Error; err != nil {
			return mapErr(err)
		}

		var target Answer
		err := tx.Where("room_id = ? AND round = ? AND session_id = ? AND player_id = ?",
			v.RoomID, v.Round, room.SessionID, v.TargetID).First(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && strings.TrimSpace(target.Answers[v.Category]) == "") {
			return ErrInvalidTarget
		}
		if err != nil {
			return err
		}

		var prior Vote
		err = tx.Where("room_id = ? AND round = ? AND voter_id = ? AND target_id = ? AND category = ?",
			v.RoomID, v.Round, v.VoterID, v.TargetID, v.Category).First(&prior).Error
		switch {
		case err == nil:
			stored = prior
			cast = false
			return tx.Delete(&Vote{ID: prior.ID}).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			if v.ID == "" {
				v.ID = uuid.NewString()
			}
			v.IsVeto = true
			v.CastAt = time.Now()
			stored = v
			cast = true
			return tx.Create(&v).Error
		default:
			return err
		}
	})
	if err != nil {
		return false, Vote{}, err
	}

	op := OpDelete
	if cast {
		op = OpInsert
	}
	p.events.Publish(v.RoomID, VoteChanged{Op: op, Vote: stored})
	return cast, stored, nil
}

func (p *Postgres) Votes(ctx context.Context, roomID string, round int) ([]Vote, error) {
	var out []Vote
	err := p.db.WithContext(ctx).Where("room_id = ? AND round = ?", roomID, round).Find(&out).Error
	return out, err
}

func (p *Postgres) DeleteVotes(ctx context.Context, roomID string) error {
	return p.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&Vote{}).Error
}

func (p *Postgres) CommitRoundScores(ctx context.Context, roomID string, round int, deltas map[string]int) error {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The guard row's composite primary key makes a duplicate
		// commit fail before any score moves.
		guard := ScoredRound{RoomID: roomID, Round: round, ScoredAt: time.Now()}
		if err := tx.Create(&guard).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyProcessed
			}
			return err
		}
		for playerID, delta := range deltas {
			err := tx.Model(&Player{}).
				Where("id = ? AND room_id = ?", playerID, roomID).
				Update("score", gorm.Expr("score + ?", delta)).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.events.Publish(roomID, PlayerSetChanged{})
	return nil
}

func (p *Postgres) Subscribe(roomID string) (<-chan Event, func()) {
	return p.events.Subscribe(roomID, 64)
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
