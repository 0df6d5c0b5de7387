package service

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itsmahammad/UniversityERP/internal/models"
	"github.com/itsmahammad/UniversityERP/internal/policy"
	"github.com/itsmahammad/UniversityERP/pkg/database"
	appErrors "github.com/itsmahammad/UniversityERP/pkg/errors"
	"github.com/itsmahammad/UniversityERP/pkg/security"
	"github.com/itsmahammad/UniversityERP/pkg/spreadsheet"
)

// Spreadsheet column positions.
const (
	colCode = iota
	colFullName
	colPersonalEmail
	colRole
	colActive
	colPositionTitle
)

const (
	minCodeLength = 5
	maxCodeLength = 16
	maxFullName   = 150
	maxPersonal   = 256
	maxPosition   = 100
)

// Row level failure messages.
const (
	msgCodeRequired      = "code is required"
	msgCodeFormat        = "code must be 5-16 alphanumeric characters"
	msgCodeDuplicateFile = "duplicate code in file"
	msgCodeExists        = "code already exists"
	msgFullNameRequired  = "full name is required"
	msgFullNameTooLong   = "full name must be at most 150 characters"
	msgEmailExists       = "email already exists"
	msgUnknownRole       = "unknown role"
	msgInsufficientPriv  = "insufficient privilege"
	msgPersonalEmail     = "personal email is invalid"
	msgPositionTooLong   = "position title must be at most 100 characters"
	msgPasswordFailure   = "failed to generate credentials"
)

type importRepository interface {
	ExistingCodes(ctx context.Context, codes []string, includeDeleted bool) (map[string]struct{}, error)
	ExistingEmails(ctx context.Context, emails []string, includeDeleted bool) (map[string]struct{}, error)
	CreateBatch(ctx context.Context, users []*models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ImportConfig bounds uploads and carries account provisioning settings.
type ImportConfig struct {
	Accounts         AccountConfig
	MaxFileSizeBytes int64
}

// UserImportService reconciles spreadsheet rows against the directory and
// creates every valid row in a single transaction.
type UserImportService struct {
	repo      importRepository
	hasher    passwordHasher
	notifier  credentialSender
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    ImportConfig
	now       func() time.Time
}

// NewUserImportService constructs the import service.
func NewUserImportService(repo importRepository, hasher passwordHasher, notifier credentialSender, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config ImportConfig) *UserImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	config.Accounts = config.Accounts.normalized()
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 5 * 1024 * 1024
	}
	return &UserImportService{
		repo:      repo,
		hasher:    hasher,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// MaxFileSize returns the accepted upload size in bytes.
func (s *UserImportService) MaxFileSize() int64 {
	return s.config.MaxFileSizeBytes
}

// ImportUpload validates the uploaded file and imports its first sheet.
func (s *UserImportService) ImportUpload(ctx context.Context, actor models.Actor, filename string, size int64, r io.Reader) (*models.ImportResult, error) {
	if err := policy.CanManageAccounts(actor); err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only .xlsx files are supported")
	}
	if size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if size > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, "file exceeds the maximum allowed size")
	}

	sheet, err := spreadsheet.ReadFirstSheet(io.LimitReader(r, s.config.MaxFileSizeBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "file is not a readable xlsx workbook")
	}
	if len(sheet.Rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file contains no data rows")
	}
	return s.Import(ctx, actor, sheet.Rows)
}

type stagedRow struct {
	outcome  *models.ImportRow
	user     *models.User
	password string
}

// Import classifies rows, persists every valid one atomically and then sends
// credential emails. A failing row never aborts its siblings; a failing commit
// aborts the whole import.
func (s *UserImportService) Import(ctx context.Context, actor models.Actor, rows []spreadsheet.Row) (*models.ImportResult, error) {
	if err := policy.CanManageAccounts(actor); err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(rows))
	emails := make([]string, 0, len(rows))
	for _, row := range rows {
		code := normalizeCode(row.Cell(colCode))
		if code == "" {
			continue
		}
		codes = append(codes, code)
		emails = append(emails, s.config.Accounts.InstitutionalEmail(code))
	}

	existingCodes, err := s.repo.ExistingCodes(ctx, uniqueStrings(codes), true)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load existing codes")
	}
	existingEmails, err := s.repo.ExistingEmails(ctx, uniqueStrings(emails), true)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load existing emails")
	}

	outcomes := make([]*models.ImportRow, 0, len(rows))
	staged := make([]stagedRow, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))

	for _, row := range rows {
		outcome, user, password := s.classify(actor, row, seen, existingCodes, existingEmails)
		outcomes = append(outcomes, outcome)
		if user != nil {
			staged = append(staged, stagedRow{outcome: outcome, user: user, password: password})
		}
	}

	if len(staged) > 0 {
		batch := make([]*models.User, len(staged))
		for i, st := range staged {
			batch[i] = st.user
		}
		start := time.Now()
		err := s.repo.CreateBatch(ctx, batch)
		s.metrics.ObserveDBQuery("user_import_batch", time.Since(start))
		if err != nil {
			if database.IsUniqueViolation(err) {
				return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "a code or email in the file was taken concurrently; no users were imported")
			}
			return nil, appErrors.Internal(err, "failed to save imported users")
		}
	}

	for _, st := range staged {
		st.outcome.Success = true
		s.sendCredentials(ctx, st)
	}

	result := &models.ImportResult{TotalRows: len(outcomes), CreatedCount: len(staged)}
	result.FailedCount = result.TotalRows - result.CreatedCount
	result.Rows = make([]models.ImportRow, len(outcomes))
	for i, o := range outcomes {
		result.Rows[i] = *o
		if o.Success {
			s.metrics.RecordImportRow(OutcomeSuccess)
		} else {
			s.metrics.RecordImportRow(OutcomeFailure)
		}
	}
	sort.SliceStable(result.Rows, func(i, j int) bool { return result.Rows[i].RowNumber < result.Rows[j].RowNumber })

	if result.CreatedCount > 0 {
		writeAudit(ctx, s.repo, s.logger, actor, models.AuditActionUserImport, models.AuditResourceUser, "", nil, map[string]interface{}{
			"total_rows":    result.TotalRows,
			"created_count": result.CreatedCount,
			"failed_count":  result.FailedCount,
		})
	}
	s.logger.Info("user import completed",
		zap.String("actor_id", actor.ID),
		zap.Int("total_rows", result.TotalRows),
		zap.Int("created", result.CreatedCount),
		zap.Int("failed", result.FailedCount))

	return result, nil
}

// classify applies the row checks in order. The first failure wins. A
// returned user means the row is staged for creation.
func (s *UserImportService) classify(actor models.Actor, row spreadsheet.Row, seen, existingCodes, existingEmails map[string]struct{}) (*models.ImportRow, *models.User, string) {
	out := &models.ImportRow{
		RowNumber:     row.Number,
		Code:          row.Cell(colCode),
		FullName:      row.Cell(colFullName),
		PersonalEmail: row.Cell(colPersonalEmail),
		PositionTitle: row.Cell(colPositionTitle),
		IsActive:      parseActive(row.Cell(colActive)),
	}
	fail := func(msg string) (*models.ImportRow, *models.User, string) {
		out.Error = msg
		return out, nil, ""
	}

	if out.Code == "" {
		return fail(msgCodeRequired)
	}
	code := normalizeCode(out.Code)
	out.Code = code
	if !validCode(code) {
		return fail(msgCodeFormat)
	}
	if _, dup := seen[code]; dup {
		return fail(msgCodeDuplicateFile)
	}
	seen[code] = struct{}{}
	if _, exists := existingCodes[code]; exists {
		return fail(msgCodeExists)
	}

	if out.FullName == "" {
		return fail(msgFullNameRequired)
	}
	if len([]rune(out.FullName)) > maxFullName {
		return fail(msgFullNameTooLong)
	}

	email := s.config.Accounts.InstitutionalEmail(code)
	out.Email = email
	if _, exists := existingEmails[email]; exists {
		return fail(msgEmailExists)
	}

	role, ok := models.ParseRole(row.Cell(colRole))
	if !ok {
		return fail(msgUnknownRole)
	}
	out.Role = role
	if err := policy.CanAssignRole(actor, role); err != nil {
		return fail(msgInsufficientPriv)
	}

	if out.PersonalEmail != "" {
		out.PersonalEmail = strings.ToLower(out.PersonalEmail)
		if len(out.PersonalEmail) > maxPersonal || s.validator.Var(out.PersonalEmail, "email") != nil {
			return fail(msgPersonalEmail)
		}
	}
	if len([]rune(out.PositionTitle)) > maxPosition {
		return fail(msgPositionTooLong)
	}

	password, err := security.GenerateTempPassword(s.config.Accounts.TempPasswordLength)
	if err != nil {
		s.logger.Error("temp password generation failed", zap.Error(err))
		return fail(msgPasswordFailure)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		return fail(msgPasswordFailure)
	}

	user := &models.User{
		ID:            uuid.NewString(),
		Code:          code,
		FullName:      out.FullName,
		Email:         email,
		PersonalEmail: models.StringPtr(out.PersonalEmail),
		PasswordHash:  hash,
		Role:          role,
		Active:        out.IsActive,
		PositionTitle: models.StringPtr(out.PositionTitle),
		CreatedAt:     s.now(),
		CreatedBy:     actor.Stamp(),
	}
	return out, user, password
}

func (s *UserImportService) sendCredentials(ctx context.Context, st stagedRow) {
	if st.user.PersonalEmail == nil || s.notifier == nil {
		st.outcome.TempPassword = st.password
		return
	}
	if err := s.notifier.SendWelcome(ctx, st.user, st.password); err != nil {
		st.outcome.TempPassword = st.password
		st.outcome.Warning = deliveryWarning
		return
	}
	st.outcome.CredentialsEmailed = true
}

func normalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func validCode(code string) bool {
	if len(code) < minCodeLength || len(code) > maxCodeLength {
		return false
	}
	for _, r := range code {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// parseActive treats blank as active and accepts true, 1 and yes.
func parseActive(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "true", "1", "yes":
		return true
	default:
		return false
	}
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
