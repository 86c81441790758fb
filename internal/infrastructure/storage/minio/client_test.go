package minio

import (
	"context"
	stdliberrors "errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

type MockMinIOAPI struct {
	mock.Mock
}

func (m *MockMinIOAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockMinIOAPI) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucketName, opts).Error(0)
}

func (m *MockMinIOAPI) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	args := m.Called(ctx, bucketName, opts)
	return args.Get(0).(<-chan minio.ObjectInfo)
}

func (m *MockMinIOAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockMinIOAPI) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	// *minio.Object cannot be built without a live connection, so only
	// failures are mocked.
	return nil, args.Error(1)
}

func (m *MockMinIOAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func objectChan(infos ...minio.ObjectInfo) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(infos))
	for _, i := range infos {
		ch <- i
	}
	close(ch)
	return ch
}

type ClientTestSuite struct {
	suite.Suite
	api    *MockMinIOAPI
	client *Client
	ctx    context.Context
}

func (s *ClientTestSuite) SetupTest() {
	s.api = new(MockMinIOAPI)
	s.client = NewClientWithAPI(s.api, "gastm", logging.NewNopLogger())
	s.ctx = context.Background()
}

func (s *ClientTestSuite) TestEnsureBucket_Exists() {
	s.api.On("BucketExists", mock.Anything, "gastm").Return(true, nil)
	s.NoError(s.client.EnsureBucket(s.ctx, "us-east-1"))
	s.api.AssertNotCalled(s.T(), "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ClientTestSuite) TestEnsureBucket_Creates() {
	s.api.On("BucketExists", mock.Anything, "gastm").Return(false, nil)
	s.api.On("MakeBucket", mock.Anything, "gastm", minio.MakeBucketOptions{Region: "eu"}).Return(nil)
	s.NoError(s.client.EnsureBucket(s.ctx, "eu"))
	s.api.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestEnsureBucket_Unreachable() {
	s.api.On("BucketExists", mock.Anything, "gastm").Return(false, stdliberrors.New("dial tcp"))
	err := s.client.EnsureBucket(s.ctx, "")
	s.True(errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func (s *ClientTestSuite) TestList_Sorted() {
	s.api.On("ListObjects", mock.Anything, "gastm", minio.ListObjectsOptions{Prefix: "corpus/", Recursive: true}).
		Return(objectChan(minio.ObjectInfo{Key: "corpus/b"}, minio.ObjectInfo{Key: "corpus/a"}))

	keys, err := s.client.List(s.ctx, "corpus/")
	s.NoError(err)
	s.Equal([]string{"corpus/a", "corpus/b"}, keys)
}

func (s *ClientTestSuite) TestList_Error() {
	s.api.On("ListObjects", mock.Anything, "gastm", mock.Anything).
		Return(objectChan(minio.ObjectInfo{Err: stdliberrors.New("denied")}))

	_, err := s.client.List(s.ctx, "")
	s.True(errors.IsCode(err, errors.ErrCodeStorageError))
}

func (s *ClientTestSuite) TestPut() {
	s.api.On("PutObject", mock.Anything, "gastm", "k", mock.Anything, int64(5),
		minio.PutObjectOptions{ContentType: "text/plain"}).Return(minio.UploadInfo{Key: "k"}, nil)
	s.NoError(s.client.Put(s.ctx, "k", []byte("hello"), "text/plain"))
	s.api.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestPut_Error() {
	s.api.On("PutObject", mock.Anything, "gastm", "k", mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, stdliberrors.New("quota"))
	err := s.client.Put(s.ctx, "k", []byte("x"), "")
	s.True(errors.IsCode(err, errors.ErrCodeStorageError))
}

func (s *ClientTestSuite) TestGet_NotFound() {
	s.api.On("GetObject", mock.Anything, "gastm", "missing", mock.Anything).
		Return(nil, minio.ErrorResponse{Code: "NoSuchKey"})
	_, err := s.client.Get(s.ctx, "missing")
	s.True(errors.IsNotFound(err))
}

func (s *ClientTestSuite) TestGet_Error() {
	s.api.On("GetObject", mock.Anything, "gastm", "k", mock.Anything).
		Return(nil, stdliberrors.New("reset"))
	_, err := s.client.Get(s.ctx, "k")
	s.True(errors.IsCode(err, errors.ErrCodeStorageError))
}

func (s *ClientTestSuite) TestExists() {
	s.api.On("StatObject", mock.Anything, "gastm", "yes", mock.Anything).Return(minio.ObjectInfo{Key: "yes"}, nil)
	s.api.On("StatObject", mock.Anything, "gastm", "no", mock.Anything).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"})

	ok, err := s.client.Exists(s.ctx, "yes")
	s.NoError(err)
	s.True(ok)
	ok, err = s.client.Exists(s.ctx, "no")
	s.NoError(err)
	s.False(ok)
}

func (s *ClientTestSuite) TestHealthCheck() {
	s.api.On("BucketExists", mock.Anything, "gastm").Return(false, nil)
	st := s.client.HealthCheck(s.ctx)
	s.False(st.Healthy)
	s.Contains(st.Error, "missing")
}

func (s *ClientTestSuite) TestClosed() {
	s.NoError(s.client.Close())
	_, err := s.client.Get(s.ctx, "k")
	s.ErrorIs(err, ErrMinIOClientClosed)
	s.Error(s.client.Put(s.ctx, "k", nil, ""))
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "a/b/c.txt", joinKey("/a/", "", "b/c.txt"))
	assert.Equal(t, "doc/doc.txt", joinKey("", "doc/doc.txt"))
}
