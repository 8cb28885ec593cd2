package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/logging"
	sc "github.com/dmitrijs2005/ticketkeeper/internal/server/config"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/models"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

type EventInput struct {
	Name        string
	Description string
	Date        time.Time
	Location    string
	Type        string
}

func (in EventInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: event name is required", common.ErrorInvalidArgument)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: event date is required", common.ErrorInvalidArgument)
	}
	return nil
}

// ImageUpload is a presigned PUT the client uses to upload an event image.
type ImageUpload struct {
	Key string
	URL string
}

type EventService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	log         logging.Logger
}

func NewEventService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config, log logging.Logger) *EventService {
	return &EventService{
		db:          db,
		repomanager: m,
		config:      cfg,
		log:         log.With("module", "events"),
	}
}

// ImageKey returns a fresh object key under the event's prefix.
func ImageKey(eventID string) string {
	return fmt.Sprintf("events/%s/%v", eventID, uuid.New())
}

func (s *EventService) Create(ctx context.Context, userID string, in EventInput) (*models.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.requireDistributor(ctx, userID); err != nil {
		return nil, err
	}

	e, err := s.repomanager.Events(s.db).Create(ctx, &models.Event{
		OrganizerID: userID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Date:        in.Date,
		Location:    in.Location,
		Type:        in.Type,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating event: %w", err)
	}
	s.log.Info(ctx, "event created", "event_id", e.ID, "organizer_id", userID)
	return e, nil
}

func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	return s.repomanager.Events(s.db).GetByID(ctx, id)
}

func (s *EventService) List(ctx context.Context) ([]*models.Event, error) {
	return s.repomanager.Events(s.db).List(ctx)
}

func (s *EventService) ListByOrganizer(ctx context.Context, userID string) ([]*models.Event, error) {
	return s.repomanager.Events(s.db).ListByOrganizer(ctx, userID)
}

func (s *EventService) Update(ctx context.Context, userID, id string, in EventInput) (*models.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	e, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	e.Name = strings.TrimSpace(in.Name)
	e.Description = in.Description
	e.Date = in.Date
	e.Location = in.Location
	e.Type = in.Type
	if err := s.repomanager.Events(s.db).Update(ctx, e); err != nil {
		return nil, fmt.Errorf("error updating event: %w", err)
	}
	return e, nil
}

func (s *EventService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.repomanager.Events(s.db).Delete(ctx, id)
}

// ImageUploadURL reserves a new image key for the event and returns a
// presigned PUT for it.
func (s *EventService) ImageUploadURL(ctx context.Context, userID, id string) (*ImageUpload, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	key := ImageKey(id)
	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.S3PresignTTL))
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	if err := s.repomanager.Events(s.db).SetImageKey(ctx, id, key); err != nil {
		return nil, err
	}
	return &ImageUpload{Key: key, URL: req.URL}, nil
}

// ImageURL returns a presigned GET for the event image, or "" when the
// event has none.
func (s *EventService) ImageURL(ctx context.Context, e *models.Event) (string, error) {
	if e.ImageKey == "" {
		return "", nil
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &e.ImageKey,
	}, s3.WithPresignExpires(s.config.S3PresignTTL))
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return req.URL, nil
}

// --- helpers below ---

func (s *EventService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3AccessKey,
			s.config.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

func (s *EventService) requireDistributor(ctx context.Context, userID string) error {
	u, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.IsDistributor {
		return fmt.Errorf("%w: distributor role required", common.ErrorForbidden)
	}
	return nil
}

func (s *EventService) owned(ctx context.Context, userID, id string) (*models.Event, error) {
	e, err := s.repomanager.Events(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.OrganizerID != userID {
		return nil, fmt.Errorf("%w: event belongs to another organizer", common.ErrorForbidden)
	}
	return e, nil
}
