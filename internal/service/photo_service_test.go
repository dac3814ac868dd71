package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"attendance/internal/apperr"
	"attendance/internal/logger"
	"attendance/internal/model"
	"attendance/internal/photostore"
	"attendance/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Upload(_ context.Context, r io.Reader, obj photostore.Object) (*photostore.Stored, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := obj.Name + obj.Ext
	m.objects[key] = data
	return &photostore.Stored{URL: "https://photos.test/" + key, Key: key}, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func (f *fixture) photoService(store photostore.Store) *photoService {
	svc := NewPhotoService(f.users, f.photos, store, PhotoConfig{MaxBytes: 1 << 10, OrphanTTL: 24 * time.Hour},
		logger.Nop(), f.metrics)
	return svc.(*photoService)
}

func TestPhotoUpload(t *testing.T) {
	f := newFixture(t)
	store := newMemoryStore()
	svc := f.photoService(store)
	ctx := context.Background()
	emp := testutil.CreateUser(t, f.db, "emp", model.RoleEmployee)

	res, err := svc.Upload(ctx, emp.SubjectID, model.PhotoCheckIn, bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, model.PhotoCheckIn, res.Kind)
	assert.True(t, strings.HasPrefix(res.URL, "https://photos.test/checkin_emp@example.com_"))
	assert.True(t, strings.HasSuffix(res.URL, ".png"))
	assert.Equal(t, 1, store.Len())

	var rec model.PhotoUpload
	require.NoError(t, f.db.First(&rec, "url = ?", res.URL).Error)
	assert.Equal(t, model.PhotoPending, rec.Status)
	assert.Equal(t, emp.ID, rec.OwnerID)

	// The attendance call that references the photo claims it
	_, err = f.attendanceService().CheckIn(ctx, emp.SubjectID, CheckInRequest{PhotoURL: res.URL})
	require.NoError(t, err)
	require.NoError(t, f.db.First(&rec, "url = ?", res.URL).Error)
	assert.Equal(t, model.PhotoClaimed, rec.Status)
}

func TestPhotoUpload_Rejections(t *testing.T) {
	f := newFixture(t)
	store := newMemoryStore()
	svc := f.photoService(store)
	ctx := context.Background()
	emp := testutil.CreateUser(t, f.db, "emp", model.RoleEmployee)
	viewer := testutil.CreateUser(t, f.db, "viewer", model.RoleUser)

	tests := []struct {
		name    string
		subject string
		kind    model.PhotoKind
		body    []byte
		wantErr error
	}{
		{"unknown kind", emp.SubjectID, "selfie", pngHeader, apperr.ErrInvalidInput},
		{"user role", viewer.SubjectID, model.PhotoCheckIn, pngHeader, apperr.ErrForbidden},
		{"empty", emp.SubjectID, model.PhotoCheckOut, nil, apperr.ErrInvalidInput},
		{"not an image", emp.SubjectID, model.PhotoCheckIn, []byte("%PDF-1.4 hello"), apperr.ErrInvalidInput},
		{"too large", emp.SubjectID, model.PhotoCheckIn, append(append([]byte{}, pngHeader...), make([]byte, 2<<10)...), apperr.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.subject, tt.kind, bytes.NewReader(tt.body))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Zero(t, store.Len())
}

func TestPhotoUpload_StoreFailure(t *testing.T) {
	f := newFixture(t)
	store := newMemoryStore()
	store.uploadErr = errors.New("connection reset")
	svc := f.photoService(store)
	emp := testutil.CreateUser(t, f.db, "emp", model.RoleEmployee)

	_, err := svc.Upload(context.Background(), emp.SubjectID, model.PhotoCheckIn, bytes.NewReader(pngHeader))
	require.ErrorIs(t, err, apperr.ErrUpstreamFailure)
	assert.Contains(t, err.Error(), "try again")
}

func TestSweepOrphans(t *testing.T) {
	f := newFixture(t)
	store := newMemoryStore()
	svc := f.photoService(store)
	ctx := context.Background()
	emp := testutil.CreateUser(t, f.db, "emp", model.RoleEmployee)

	var urls []string
	for i := 0; i < 3; i++ {
		svc.now = func() time.Time { return time.Now().Add(time.Duration(i) * time.Millisecond) }
		res, err := svc.Upload(ctx, emp.SubjectID, model.PhotoCheckIn, bytes.NewReader(pngHeader))
		require.NoError(t, err, fmt.Sprint(i))
		urls = append(urls, res.URL)
	}
	require.NoError(t, f.photos.Claim(ctx, emp.ID, urls[0]))

	// Nothing is old enough yet
	svc.now = time.Now
	n, err := svc.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	n, err = svc.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, store.Len(), "the claimed photo stays")

	var left int64
	require.NoError(t, f.db.Model(&model.PhotoUpload{}).Count(&left).Error)
	assert.Equal(t, int64(1), left)
}

func TestSweepOrphans_StoreFailureKeepsRows(t *testing.T) {
	f := newFixture(t)
	store := newMemoryStore()
	svc := f.photoService(store)
	ctx := context.Background()
	emp := testutil.CreateUser(t, f.db, "emp", model.RoleEmployee)

	_, err := svc.Upload(ctx, emp.SubjectID, model.PhotoCheckOut, bytes.NewReader(pngHeader))
	require.NoError(t, err)

	store.deleteErr = errors.New("unavailable")
	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	n, err := svc.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	var left int64
	require.NoError(t, f.db.Model(&model.PhotoUpload{}).Count(&left).Error)
	assert.Equal(t, int64(1), left)
}
