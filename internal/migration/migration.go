// Package migration converts legacy per-user documents into the normalized
// label, note, template and Access Index documents.
//
// The transform is one-shot and not idempotent: every run mints fresh label,
// note and template ids, so re-running for a user duplicates their documents.
// Profiles are the exception; an existing profile is never overwritten.
package migration

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/listenupapp/labelsync/internal/color"
	"github.com/listenupapp/labelsync/internal/domain"
	"github.com/listenupapp/labelsync/internal/id"
	"github.com/listenupapp/labelsync/internal/logger"
	"github.com/listenupapp/labelsync/internal/store"
	"github.com/listenupapp/labelsync/internal/util"
)

// Source supplies legacy documents. A missing document reads as empty.
type Source interface {
	ListUsers(ctx context.Context) ([]string, error)
	Labels(ctx context.Context, userID string) (*domain.LegacyLabels, error)
	Settings(ctx context.Context, userID string) (*domain.LegacySettings, error)
	Notes(ctx context.Context, userID string) (*domain.LegacyNotes, error)
	Shortcuts(ctx context.Context, userID string) (*domain.LegacyShortcuts, error)
	Sheets(ctx context.Context, userID string) (*domain.LegacySheets, error)
}

// UserReport counts what was written for one user.
type UserReport struct {
	UserID          string `json:"userId"`
	ProfilesCreated int    `json:"profilesCreated"`
	ProfilesKept    int    `json:"profilesKept"`
	Labels          int    `json:"labels"`
	Notes           int    `json:"notes"`
	Templates       int    `json:"templates"`
	Skipped         int    `json:"skipped"`
}

// Report is the outcome of one migration run. When the run halted, FailedUser
// and Error name the user and the first error; Completed lists the users
// migrated before it.
type Report struct {
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	RunID      string       `json:"runId"`
	FailedUser string       `json:"failedUser,omitempty"`
	Error      string       `json:"error,omitempty"`
	Completed  []UserReport `json:"completed"`
}

// Migrator runs the legacy transform into a store.
type Migrator struct {
	src    Source
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Migrator.
func New(src Source, st *store.Store, log *slog.Logger) *Migrator {
	if log == nil {
		log = logger.Discard()
	}
	return &Migrator{src: src, store: st, logger: log, now: time.Now}
}

// Run migrates userIDs in order, or every legacy user when userIDs is empty.
// The first failing user halts the run; users migrated before it stay
// migrated. The returned error is that first failure.
func (m *Migrator) Run(ctx context.Context, userIDs []string) (*Report, error) {
	rep := &Report{
		RunID:     uuid.NewString(),
		StartedAt: m.now().UTC(),
		Completed: []UserReport{},
	}
	log := m.logger.With("run_id", rep.RunID)

	if len(userIDs) == 0 {
		all, err := m.src.ListUsers(ctx)
		if err != nil {
			rep.Error = err.Error()
			rep.FinishedAt = m.now().UTC()
			return rep, fmt.Errorf("list legacy users: %w", err)
		}
		userIDs = all
	}
	log.Info("migration started", "users", len(userIDs))

	for _, userID := range userIDs {
		ur, err := m.MigrateUser(ctx, userID)
		if err != nil {
			rep.FailedUser = userID
			rep.Error = err.Error()
			rep.FinishedAt = m.now().UTC()
			log.Error("migration halted", "user_id", userID, "completed", len(rep.Completed), "error", err)
			return rep, fmt.Errorf("migrate user %s: %w", userID, err)
		}
		rep.Completed = append(rep.Completed, ur)
	}

	rep.FinishedAt = m.now().UTC()
	log.Info("migration finished", "users", len(rep.Completed), "duration", rep.FinishedAt.Sub(rep.StartedAt))
	return rep, nil
}

// legacyDocs is everything read for one user.
type legacyDocs struct {
	labels    *domain.LegacyLabels
	settings  *domain.LegacySettings
	notes     *domain.LegacyNotes
	shortcuts *domain.LegacyShortcuts
	sheets    *domain.LegacySheets
}

func (m *Migrator) fetch(ctx context.Context, userID string) (*legacyDocs, error) {
	var docs legacyDocs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		docs.labels, err = m.src.Labels(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		docs.settings, err = m.src.Settings(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		docs.notes, err = m.src.Notes(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		docs.shortcuts, err = m.src.Shortcuts(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		docs.sheets, err = m.src.Sheets(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &docs, nil
}

// MigrateUser transforms one user's legacy documents and commits them in one batch.
func (m *Migrator) MigrateUser(ctx context.Context, userID string) (UserReport, error) {
	rep := UserReport{UserID: userID}
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	docs, err := m.fetch(ctx, userID)
	if err != nil {
		return rep, fmt.Errorf("fetch legacy documents: %w", err)
	}

	now := m.now().UTC()
	batch := m.store.NewBatch()

	// Profiles: extract, then create only the ones not stored yet. The
	// existence check runs outside the batch.
	candidates, skipped := collectProfiles(docs)
	rep.Skipped += skipped
	for _, pid := range slices.Sorted(maps.Keys(candidates)) {
		exists, err := m.store.Profiles.Exists(ctx, pid)
		if err != nil {
			return rep, fmt.Errorf("check profile %s: %w", pid, err)
		}
		if exists {
			rep.ProfilesKept++
			continue
		}
		m.store.Profiles.Stage(batch, pid, newProfile(pid, candidates[pid], now))
		rep.ProfilesCreated++
	}

	access := newAccess(userID, docs, now)

	for _, name := range slices.Sorted(maps.Keys(docs.labels.Labels)) {
		ll := docs.labels.Labels[name]
		labelID, err := id.Label(now)
		if err != nil {
			return rep, err
		}
		label := &domain.Label{
			ID:               labelID,
			Name:             name,
			Color:            ll.Color,
			OwnerID:          userID,
			MemberProfileIDs: members(ll, candidates),
			LastUpdated:      now,
		}
		if label.Color == "" {
			label.Color = color.ForProfile(labelID)
		}
		m.store.Labels.Stage(batch, labelID, label)
		access.Data.Add(domain.KindLabel, domain.OwnedReference(labelID))
		rep.Labels++
	}

	for _, key := range slices.Sorted(maps.Keys(docs.notes.Notes)) {
		ln := docs.notes.Notes[key]
		pid, err := util.ProfileIDFromURL(ln.URL)
		if _, ok := candidates[pid]; err != nil || !ok {
			rep.Skipped++
			continue
		}
		noteID, err := id.Note(now)
		if err != nil {
			return rep, err
		}
		m.store.Notes.Stage(batch, noteID, &domain.Note{
			ID:          noteID,
			Content:     noteContent(ln.Text),
			OwnerID:     userID,
			ProfileID:   pid,
			LastUpdated: now,
		})
		access.Data.Add(domain.KindNote, domain.OwnedReference(noteID))
		rep.Notes++
	}

	for _, sc := range docs.shortcuts.Shortcuts {
		if sc.Title == "" && sc.Text == "" {
			rep.Skipped++
			continue
		}
		templateID, err := id.Template(now)
		if err != nil {
			return rep, err
		}
		m.store.Templates.Stage(batch, templateID, &domain.MessageTemplate{
			ID:          templateID,
			Title:       sc.Title,
			Body:        sc.Text,
			OwnerID:     userID,
			LastUpdated: now,
		})
		access.Data.Add(domain.KindTemplate, domain.OwnedReference(templateID))
		rep.Templates++
	}

	m.store.Users.Stage(batch, userID, access)

	if err := batch.Commit(ctx); err != nil {
		return rep, fmt.Errorf("commit batch: %w", err)
	}

	m.logger.Info("user migrated",
		"user_id", userID,
		"profiles_created", rep.ProfilesCreated,
		"labels", rep.Labels,
		"notes", rep.Notes,
		"templates", rep.Templates,
		"skipped", rep.Skipped,
	)
	return rep, nil
}

// collectProfiles extracts every profile referenced by labels and notes,
// keyed by profile id. Entries without a usable URL are counted as skipped.
// Label members win over note snapshots, and a named snapshot over an unnamed one.
func collectProfiles(docs *legacyDocs) (map[string]domain.LegacyProfile, int) {
	out := make(map[string]domain.LegacyProfile)
	skipped := 0

	add := func(p domain.LegacyProfile) {
		pid, err := util.ProfileIDFromURL(p.URL)
		if err != nil {
			skipped++
			return
		}
		p.Name = plainName(p.Name)
		if prev, ok := out[pid]; ok && (prev.Name != "" || p.Name == "") {
			return
		}
		out[pid] = p
	}

	for _, name := range slices.Sorted(maps.Keys(docs.labels.Labels)) {
		codes := docs.labels.Labels[name].Codes
		for _, key := range slices.Sorted(maps.Keys(codes)) {
			add(codes[key])
		}
	}
	for _, key := range slices.Sorted(maps.Keys(docs.notes.Notes)) {
		ln := docs.notes.Notes[key]
		if _, err := util.ProfileIDFromURL(ln.URL); err != nil {
			// Counted once, when the note itself is skipped.
			continue
		}
		add(ln.LegacyProfile)
	}
	return out, skipped
}

// members resolves a legacy label's codes to profile ids, keeping code order
// and dropping ids that did not resolve.
func members(ll domain.LegacyLabel, resolved map[string]domain.LegacyProfile) []string {
	ids := []string{}
	for _, key := range slices.Sorted(maps.Keys(ll.Codes)) {
		pid, err := util.ProfileIDFromURL(ll.Codes[key].URL)
		if err != nil {
			continue
		}
		if _, ok := resolved[pid]; ok && !slices.Contains(ids, pid) {
			ids = append(ids, pid)
		}
	}
	return ids
}

func newProfile(pid string, lp domain.LegacyProfile, now time.Time) *domain.Profile {
	p := &domain.Profile{
		ID:          pid,
		Name:        lp.Name,
		URL:         lp.URL,
		LastUpdated: now,
	}
	code := color.AvatarCode(pid, lp.Name)
	p.AvatarCode = &code
	if lp.Image != "" {
		img := lp.Image
		p.Image = &img
	}
	return p
}

// newAccess builds the user's Access Index from legacy settings, defaulting
// what is missing.
func newAccess(userID string, docs *legacyDocs, now time.Time) *domain.UserAccess {
	u := domain.NewUserAccess(userID, docs.settings.Email, plainName(docs.settings.DisplayName), now)
	if docs.settings.Theme != "" {
		u.Settings.Theme = docs.settings.Theme
	}
	if docs.settings.Locale != "" {
		u.Settings.Locale = docs.settings.Locale
	}
	u.Settings.SheetID = docs.sheets.SheetID
	return u
}
