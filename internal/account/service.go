// Package account contains the user-facing business logic: registration,
// login, profile and credential updates, and direct notification delivery.
//
// THE THREE-LAYER SPLIT:
// Handlers parse HTTP and write responses; this service enforces the rules
// (duplicate student ids, nickname uniqueness, password verification); the
// identity store and persistence gateway hold the state. The service
// accepts primitives and returns domain values and apperror errors — it
// has zero knowledge of HTTP.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/campus-forum/internal/apperror"
	"github.com/sakif/campus-forum/internal/auth"
	"github.com/sakif/campus-forum/internal/email"
	"github.com/sakif/campus-forum/internal/identity"
	"github.com/sakif/campus-forum/internal/model"
	"github.com/sakif/campus-forum/internal/notify"
	"github.com/sakif/campus-forum/internal/repository"
	"github.com/sakif/campus-forum/internal/tasks"
)

// Validation constants.
const (
	MaxNicknameLength  = 30
	MinPasswordLength  = 6
	MaxStudentIDLength = 20
)

// Service handles account business logic. Constructed once in the
// composition root; every dependency is injected.
type Service struct {
	identities *identity.Store
	session    *identity.Session
	pipeline   *notify.Pipeline
	passwords  *auth.PasswordService
	gateway    repository.Gateway
	runner     *tasks.Runner
	mail       email.Sender
	logger     *slog.Logger
}

// NewService wires the account service. runner may be nil; persistence then
// runs synchronously (tests rely on this).
func NewService(
	identities *identity.Store,
	session *identity.Session,
	pipeline *notify.Pipeline,
	passwords *auth.PasswordService,
	gateway repository.Gateway,
	runner *tasks.Runner,
	mail email.Sender,
	logger *slog.Logger,
) *Service {
	return &Service{
		identities: identities,
		session:    session,
		pipeline:   pipeline,
		passwords:  passwords,
		gateway:    gateway,
		runner:     runner,
		mail:       mail,
		logger:     logger,
	}
}

// Register creates a new student account.
//
// VALIDATION RULES (all reported as structured apperror values, never
// panics or opaque failures):
//   - student id, nickname and password must be non-blank
//   - password must be at least MinPasswordLength characters
//   - the student id must not already have a canonical record
//   - the nickname must not be in use by any existing account
//
// On success the new user is installed as the canonical record for its
// student id and the user collection is persisted best-effort.
func (s *Service) Register(studentID, nickname, password string) (*model.User, error) {
	studentID = strings.TrimSpace(studentID)
	nickname = strings.TrimSpace(nickname)

	if studentID == "" {
		return nil, apperror.ValidationFailed("studentId", "student id is required")
	}
	if len(studentID) > MaxStudentIDLength {
		return nil, apperror.ValidationFailed("studentId",
			fmt.Sprintf("student id must be %d characters or less", MaxStudentIDLength))
	}
	if nickname == "" {
		return nil, apperror.ValidationFailed("nickname", "nickname is required")
	}
	if len([]rune(nickname)) > MaxNicknameLength {
		return nil, apperror.ValidationFailed("nickname",
			fmt.Sprintf("nickname must be %d characters or less", MaxNicknameLength))
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	if _, exists := s.identities.Get(studentID); exists {
		s.logger.Warn("registration rejected: student id exists",
			slog.String("studentID", studentID))
		return nil, apperror.Conflict("student", studentID)
	}
	for _, u := range s.identities.All() {
		if u.Nickname == nickname {
			s.logger.Warn("registration rejected: nickname exists",
				slog.String("nickname", nickname))
			return nil, apperror.ValidationFailed("nickname", "nickname is already in use")
		}
	}

	salt, hash, err := s.passwords.Derive(password)
	if err != nil {
		// Unrecoverable: credential storage must not degrade silently.
		return nil, fmt.Errorf("account: deriving password hash: %w", err)
	}

	user := &model.User{
		ID:           xid.New().String(),
		Kind:         model.KindStudent,
		StudentID:    studentID,
		Nickname:     nickname,
		AvatarPath:   model.DefaultAvatarPath,
		Salt:         salt,
		PasswordHash: hash,
		RegisteredAt: time.Now(),
	}

	canonical := s.identities.Upsert(user)
	if canonical != user {
		// A record appeared between the existence check and the install.
		// The earlier record wins; this registration loses.
		return nil, apperror.Conflict("student", studentID)
	}

	s.logger.Info("user registered",
		slog.String("studentID", studentID),
		slog.String("nickname", nickname),
	)

	s.persistUsers()
	return canonical, nil
}

// Login verifies the credentials against the canonical record and, on
// success, starts the session with it.
//
// The error is the same for an unknown student id and a wrong password —
// callers cannot probe which ids exist.
func (s *Service) Login(studentID, password string) (*model.User, error) {
	studentID = strings.TrimSpace(studentID)

	user, ok := s.identities.Get(studentID)
	if !ok || !s.passwords.Verify(password, user.Salt, user.PasswordHash) {
		return nil, apperror.Unauthorized("invalid student id or password")
	}

	s.session.Start(user)
	s.logger.Info("user logged in", slog.String("studentID", studentID))
	return user, nil
}

// Logout ends the active session.
func (s *Service) Logout() {
	s.session.End()
}

// UpdatePassword re-derives the stored credentials after verifying the old
// password against the canonical record.
func (s *Service) UpdatePassword(studentID, oldPassword, newPassword string) error {
	user, ok := s.identities.Get(studentID)
	if !ok {
		return apperror.NotFound("user", studentID)
	}
	if !s.passwords.Verify(oldPassword, user.Salt, user.PasswordHash) {
		return apperror.Unauthorized("old password is incorrect")
	}
	if len(newPassword) < MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	salt, hash, err := s.passwords.Derive(newPassword)
	if err != nil {
		return fmt.Errorf("account: deriving password hash: %w", err)
	}

	s.identities.ApplyMutation(studentID, func(u *model.User) {
		u.Salt = salt
		u.PasswordHash = hash
	})

	s.logger.Info("password updated", slog.String("studentID", studentID))
	s.persistUsers()
	return nil
}

// UpdateProfile changes the mutable display fields on the canonical record.
func (s *Service) UpdateProfile(studentID, nickname, avatarPath string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname != "" {
		for _, u := range s.identities.All() {
			if u.StudentID != studentID && u.Nickname == nickname {
				return apperror.ValidationFailed("nickname", "nickname is already in use")
			}
		}
	}

	if !s.identities.ApplyMutation(studentID, func(u *model.User) {
		u.UpdateProfile(nickname, avatarPath)
	}) {
		return apperror.NotFound("user", studentID)
	}

	s.persistUsers()
	return nil
}

// Get returns the canonical record for a student id.
func (s *Service) Get(studentID string) (*model.User, error) {
	user, ok := s.identities.Get(studentID)
	if !ok {
		return nil, apperror.NotFound("user", studentID)
	}
	return user, nil
}

// Notifications returns a snapshot of the canonical record's notifications.
// Unknown student id → empty list, not an error.
func (s *Service) Notifications(studentID string) []*model.Notification {
	out := []*model.Notification{}
	s.identities.ApplyMutation(studentID, func(u *model.User) {
		out = u.NotificationSnapshot()
	})
	return out
}

// MarkNotificationRead flips the read flag on one notification of the
// canonical record.
func (s *Service) MarkNotificationRead(studentID, notificationID string) error {
	found := false
	ok := s.identities.ApplyMutation(studentID, func(u *model.User) {
		for _, n := range u.Notifications {
			if n != nil && n.ID == notificationID {
				n.MarkRead()
				found = true
				return
			}
		}
	})
	if !ok {
		return apperror.NotFound("user", studentID)
	}
	if !found {
		return apperror.NotFound("notification", notificationID)
	}

	s.persistUsers()
	return nil
}

// SendNotification delivers a notification directly to a user's canonical
// record (subject to the pipeline's duplicate suppression) and persists the
// user collection.
//
// Unknown target → not-found error; a suppressed duplicate is not an error.
func (s *Service) SendNotification(targetStudentID string, n *model.Notification) error {
	if targetStudentID == "" || n == nil {
		return apperror.ValidationFailed("notification", "target and notification are required")
	}

	switch s.pipeline.Deliver(targetStudentID, n) {
	case notify.Dropped:
		s.logger.Warn("direct notification dropped: target not found",
			slog.String("target", targetStudentID))
		return apperror.NotFound("user", targetStudentID)
	case notify.Suppressed:
		s.logger.Debug("direct notification suppressed as duplicate",
			slog.String("target", targetStudentID))
	}

	s.persistUsers()
	return nil
}

// SendVerificationCode asks the email collaborator to issue a code.
func (s *Service) SendVerificationCode(address string) error {
	if err := s.mail.SendVerificationCode(address); err != nil {
		return apperror.ValidationFailed("email", "could not send verification code")
	}
	return nil
}

// VerifyCode checks a previously issued code.
func (s *Service) VerifyCode(address, code string) bool {
	return s.mail.VerifyCode(address, code)
}

// persistUsers snapshots the canonical records through the gateway,
// best-effort. With a runner the save runs on a worker goroutine; without
// one, synchronously. Failures are logged; memory stays authoritative.
func (s *Service) persistUsers() {
	snapshot := s.identities.All()
	save := func() {
		if err := s.gateway.SaveUsers(context.Background(), snapshot); err != nil {
			s.logger.Warn("persisting users failed (keeping in-memory state)",
				slog.String("error", err.Error()),
			)
		}
	}
	if s.runner != nil {
		s.runner.Submit(save)
		return
	}
	save()
}
