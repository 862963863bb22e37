package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"storefront-backend/internal/models"
	"storefront-backend/internal/repository"
	"storefront-backend/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []string
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []*models.Order
}

func (n *recordingNotifier) PublishOrder(order *models.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order)
}

type PipelineTestSuite struct {
	suite.Suite
	db        *sql.DB
	ctx       context.Context
	secret    []byte
	publisher *recordingPublisher
	notifier  *recordingNotifier
	orders    *OrderService
	reviews   *ReviewService
	catalog   *CatalogService
	curated   *CuratedService
}

func (s *PipelineTestSuite) SetupTest() {
	s.setup(testutil.SetupTestDatabase(s.T()))
}

func (s *PipelineTestSuite) setup(db *sql.DB) {
	s.db = db
	s.ctx = context.Background()
	s.publisher = &recordingPublisher{}
	s.notifier = &recordingNotifier{}

	cfg := testConfig("http://127.0.0.1:0")
	s.secret = []byte(cfg.GatewayKeySecret)
	logger := zap.NewNop()

	products := repository.NewProductRepository(s.db)
	comments := repository.NewCommentRepository(s.db)
	orders := repository.NewOrderRepository(s.db)
	configs := repository.NewConfigRepository(s.db)

	payments := NewPaymentService(NewHTTPGatewayClient(cfg), cfg, logger)
	s.orders = NewOrderService(orders, payments, s.publisher, s.notifier, logger)
	s.reviews = NewReviewService(products, comments, orders, s.publisher, logger)
	s.catalog = NewCatalogService(products, comments, logger)
	s.curated = NewCuratedService(configs, products, logger)
}

func TestPipelineTestSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}

// The in-memory suite serializes on one connection; this runs the racing
// writers against a pooled WAL database file.
func TestConcurrentWritesOnFileDatabase(t *testing.T) {
	s := new(PipelineTestSuite)
	s.SetT(t)
	s.setup(testutil.SetupFileTestDatabase(t))

	s.assertConcurrentCaptures(16)
	s.assertConcurrentReviews(40)
}

func (s *PipelineTestSuite) captureRequest(gatewayOrderID, firstname, lastname string, productRefs ...int) *models.CaptureRequest {
	paymentID := "pay_" + gatewayOrderID
	total := decimal.Zero
	var items []models.OrderItem
	for _, ref := range productRefs {
		items = append(items, models.OrderItem{ProductRef: ref, Name: fmt.Sprintf("Product %d", ref), Quantity: 1, Price: decimal.NewFromInt(100)})
		total = total.Add(decimal.NewFromInt(100))
	}
	return &models.CaptureRequest{
		GatewayOrderID: gatewayOrderID,
		PaymentID:      paymentID,
		Signature:      Sign(s.secret, gatewayOrderID, paymentID),
		OrderDetails: &models.OrderDetails{
			User: models.Customer{
				Firstname: firstname, Lastname: lastname, Email: "buyer@example.com", Phone: "5550100",
				Address: "12 MG Road", City: "Pune", State: "MH", PostalCode: "411001", Country: "IN",
			},
			Items: items,
			Total: &total,
		},
		ClientIP: "203.0.113.7",
	}
}

func (s *PipelineTestSuite) countRows(table string) int {
	var n int
	s.Require().NoError(s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n))
	return n
}

func (s *PipelineTestSuite) TestCaptureVerifiedOrder() {
	req := s.captureRequest("order_A1", "Priya", "Sharma Reddy", 1, 2)
	req.OrderDetails.User.Email = " Buyer@Example.COM"
	order, err := s.orders.CapturePayment(s.ctx, req)
	s.Require().NoError(err)
	s.Equal("order_A1", order.OrderID)
	s.Equal(models.PaymentStatusConfirmed, order.PaymentStatus)
	s.Equal(models.ShippingPending, order.ShippingStatus)
	s.Equal("pay_order_A1", order.GatewayRef.PaymentID)

	stored, err := s.orders.GetOrder(s.ctx, "order_A1")
	s.Require().NoError(err)
	s.Len(stored.Items, 2)
	s.Equal("200.00", stored.Total.StringFixed(2))
	s.Equal("buyer@example.com", stored.User.Email)

	s.Equal([]string{EventOrderConfirmed}, s.publisher.types())
	s.Len(s.notifier.orders, 1)
}

func (s *PipelineTestSuite) TestCaptureRejectsInvalidSignature() {
	req := s.captureRequest("order_A1", "Priya", "Sharma", 1)
	req.Signature = Sign([]byte("forged"), req.GatewayOrderID, req.PaymentID)

	_, err := s.orders.CapturePayment(s.ctx, req)
	s.Require().Error(err)
	s.True(errors.Is(err, models.ErrSignatureInvalid))
	s.Equal("Invalid signature", models.PublicMessage(err))

	s.Zero(s.countRows("orders"))
	s.Zero(s.countRows("order_items"))
	s.Empty(s.publisher.types())
	s.Empty(s.notifier.orders)
}

func (s *PipelineTestSuite) TestCaptureRequiresAllFields() {
	mutations := map[string]func(r *models.CaptureRequest){
		"gatewayOrderId": func(r *models.CaptureRequest) { r.GatewayOrderID = "" },
		"paymentId":      func(r *models.CaptureRequest) { r.PaymentID = "" },
		"signature":      func(r *models.CaptureRequest) { r.Signature = "" },
		"orderDetails":   func(r *models.CaptureRequest) { r.OrderDetails = nil },
		"items":          func(r *models.CaptureRequest) { r.OrderDetails.Items = nil },
		"total":          func(r *models.CaptureRequest) { r.OrderDetails.Total = nil },
	}

	for name, mutate := range mutations {
		s.Run(name, func() {
			req := s.captureRequest("order_A1", "Priya", "Sharma", 1)
			mutate(req)
			_, err := s.orders.CapturePayment(s.ctx, req)
			s.True(errors.Is(err, models.ErrValidation), "got %v", err)
		})
	}
	s.Zero(s.countRows("orders"))
}

func (s *PipelineTestSuite) TestDuplicateCaptureIsConflict() {
	_, err := s.orders.CapturePayment(s.ctx, s.captureRequest("order_A1", "Priya", "Sharma", 1))
	s.Require().NoError(err)

	_, err = s.orders.CapturePayment(s.ctx, s.captureRequest("order_A1", "Priya", "Sharma", 1))
	s.Require().Error(err)
	s.True(errors.Is(err, models.ErrConflict))
	s.Equal(1, s.countRows("orders"))
	s.Equal(1, s.countRows("order_items"))
}

func (s *PipelineTestSuite) TestConcurrentDuplicateCapturesPersistOnce() {
	s.assertConcurrentCaptures(8)
}

func (s *PipelineTestSuite) assertConcurrentCaptures(n int) {
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.orders.CapturePayment(s.ctx, s.captureRequest("order_RACE", "Priya", "Sharma", 1))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, conflicts int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, models.ErrConflict):
			conflicts++
		default:
			s.T().Errorf("unexpected capture error: %v", err)
		}
	}
	s.Equal(1, ok)
	s.Equal(n-1, conflicts)
	s.Equal(1, s.countRows("orders"))
	s.Equal(1, s.countRows("order_items"))
}

func (s *PipelineTestSuite) TestPublishFailureDoesNotFailCapture() {
	s.publisher.err = errors.New("broker down")
	_, err := s.orders.CapturePayment(s.ctx, s.captureRequest("order_A1", "Priya", "Sharma", 1))
	s.NoError(err)
	s.Equal(1, s.countRows("orders"))
}

func (s *PipelineTestSuite) TestReviewForMissingProduct() {
	_, err := s.reviews.SubmitReview(s.ctx, 404, models.ReviewInput{Username: "a", Rating: 5, Comment: "great"})
	s.Require().Error(err)
	s.True(errors.Is(err, models.ErrNotFound))
	s.Zero(s.countRows("comments"))
	s.Empty(s.publisher.types())
}

func (s *PipelineTestSuite) TestReviewValidation() {
	testutil.CreateTestProduct(s.T(), s.db, 1, "Silk Saree", 120)

	inputs := []models.ReviewInput{
		{Username: "", Rating: 5, Comment: "great"},
		{Username: "a", Rating: 5, Comment: "  "},
		{Username: "a", Rating: 0, Comment: "great"},
		{Username: "a", Rating: 6, Comment: "great"},
	}
	for _, in := range inputs {
		_, err := s.reviews.SubmitReview(s.ctx, 1, in)
		s.True(errors.Is(err, models.ErrValidation), "input %+v", in)
	}
	s.Zero(s.countRows("comments"))
}

func (s *PipelineTestSuite) TestVerifiedPurchase() {
	testutil.CreateTestProduct(s.T(), s.db, 1, "Silk Saree", 120)
	testutil.CreateTestProduct(s.T(), s.db, 2, "Cotton Kurta", 40)
	testutil.CreateTestOrder(s.T(), s.db, "order_1", "Priya", "Sharma Reddy", 1)

	result, err := s.reviews.SubmitReview(s.ctx, 1, models.ReviewInput{Username: "priya sharma", Rating: 5, Comment: "Lovely"})
	s.Require().NoError(err)
	s.True(result.Comment.VerifiedPurchase)

	result, err = s.reviews.SubmitReview(s.ctx, 1, models.ReviewInput{Username: "  PRIYA  ", Rating: 4, Comment: "Nice"})
	s.Require().NoError(err)
	s.True(result.Comment.VerifiedPurchase)

	result, err = s.reviews.SubmitReview(s.ctx, 1, models.ReviewInput{Username: "Arjun", Rating: 4, Comment: "Nice"})
	s.Require().NoError(err)
	s.False(result.Comment.VerifiedPurchase)

	// The order does not contain product 2
	result, err = s.reviews.SubmitReview(s.ctx, 2, models.ReviewInput{Username: "priya sharma", Rating: 3, Comment: "Ok"})
	s.Require().NoError(err)
	s.False(result.Comment.VerifiedPurchase)
}

func (s *PipelineTestSuite) TestAggregateAfterSequentialReviews() {
	testutil.CreateTestProduct(s.T(), s.db, 1, "Silk Saree", 120)

	ratings := []int{5, 4, 4, 3, 1, 5}
	var last *ReviewResult
	for i, r := range ratings {
		var err error
		last, err = s.reviews.SubmitReview(s.ctx, 1, models.ReviewInput{
			Username: fmt.Sprintf("user %d", i), Rating: r, Comment: "review",
		})
		s.Require().NoError(err)
	}

	// 22 / 6 = 3.666..
	s.Equal(3.7, last.Rating)
	s.Equal(6, last.ReviewsCount)

	product, err := s.catalog.GetProduct(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(3.7, product.Rating)
	s.Equal(6, product.ReviewsCount)
}

func (s *PipelineTestSuite) TestAggregateAfterConcurrentReviews() {
	s.assertConcurrentReviews(20)
}

// assertConcurrentReviews submits n reviews rated 1..5 in rotation, so the
// aggregate settles on 3.0 when n is a multiple of 5
func (s *PipelineTestSuite) assertConcurrentReviews(n int) {
	testutil.CreateTestProduct(s.T(), s.db, 1, "Silk Saree", 120)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.reviews.SubmitReview(s.ctx, 1, models.ReviewInput{
				Username: fmt.Sprintf("user %d", i), Rating: i%5 + 1, Comment: "review",
			})
			assert.NoError(s.T(), err)
		}(i)
	}
	wg.Wait()

	product, err := s.catalog.GetProduct(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(3.0, product.Rating)
	s.Equal(n, product.ReviewsCount)
	s.Equal(n, s.countRows("comments"))
}

func (s *PipelineTestSuite) TestListComments() {
	testutil.CreateTestProduct(s.T(), s.db, 1, "Silk Saree", 120)
	for i, r := range []int{5, 2} {
		_, err := s.reviews.SubmitReview(s.ctx, 1, models.ReviewInput{Username: fmt.Sprintf("u%d", i), Rating: r, Comment: "c"})
		s.Require().NoError(err)
	}

	comments, err := s.reviews.ListComments(s.ctx, models.CommentQuery{ProductID: 1, Stars: 2})
	s.Require().NoError(err)
	s.Len(comments, 1)

	_, err = s.reviews.ListComments(s.ctx, models.CommentQuery{ProductID: 1, Sort: "random"})
	s.True(errors.Is(err, models.ErrValidation))

	comments, err = s.reviews.ListComments(s.ctx, models.CommentQuery{ProductID: 99})
	s.Require().NoError(err)
	s.Empty(comments)
}

func (s *PipelineTestSuite) TestCatalogCreateFoldsExistingComments() {
	_, err := s.db.Exec(`INSERT INTO comments (id, product_id, username, comment, rating, created_at)
		VALUES ('c1', 5, 'a', 'kept', 4, CURRENT_TIMESTAMP), ('c2', 5, 'b', 'kept', 5, CURRENT_TIMESTAMP)`)
	s.Require().NoError(err)

	product, err := s.catalog.CreateProduct(s.ctx, &models.ProductInput{ID: 5, Name: "Reseeded", Price: decimal.NewFromInt(10)})
	s.Require().NoError(err)
	s.Equal(4.5, product.Rating)
	s.Equal(2, product.ReviewsCount)

	_, err = s.catalog.CreateProduct(s.ctx, &models.ProductInput{ID: 5, Name: "Again", Price: decimal.NewFromInt(10)})
	s.True(errors.Is(err, models.ErrConflict))

	_, err = s.catalog.CreateProduct(s.ctx, &models.ProductInput{ID: 0, Name: "Bad", Price: decimal.NewFromInt(10)})
	s.True(errors.Is(err, models.ErrValidation))
}

func (s *PipelineTestSuite) TestListProductsClampsPaging() {
	for i := 1; i <= 60; i++ {
		testutil.CreateTestProduct(s.T(), s.db, i, fmt.Sprintf("P%d", i), 1)
	}

	page, err := s.catalog.ListProducts(s.ctx, models.ProductQuery{Page: 0, Limit: 1000})
	s.Require().NoError(err)
	s.Len(page.Products, models.MaxPageSize)
	s.Equal(1, page.CurrentPage)
	s.Equal(2, page.TotalPages)
	s.Equal(60, page.TotalProducts)
}

func (s *PipelineTestSuite) TestCuratedListsPreserveOrder() {
	testutil.CreateTestProduct(s.T(), s.db, 1, "A", 1)
	testutil.CreateTestProduct(s.T(), s.db, 3, "C", 1)

	products, err := s.curated.Resolve(s.ctx, models.CarouselIDs)
	s.Require().NoError(err)
	s.Empty(products)

	s.Require().NoError(s.curated.PutList(s.ctx, &models.CuratedList{Kind: models.CarouselIDs, ProductIDs: []int{3, 99, 1}}))
	products, err = s.curated.Resolve(s.ctx, models.CarouselIDs)
	s.Require().NoError(err)
	s.Require().Len(products, 2)
	s.Equal(3, products[0].ID)
	s.Equal(1, products[1].ID)

	list, err := s.curated.GetList(s.ctx, models.CarouselIDs)
	s.Require().NoError(err)
	s.Equal([]int{3, 99, 1}, list.ProductIDs)

	err = s.curated.PutList(s.ctx, &models.CuratedList{Kind: models.TopPickIDs, ProductIDs: []int{1, 1}})
	s.True(errors.Is(err, models.ErrValidation))
	top, err := s.curated.GetList(s.ctx, models.TopPickIDs)
	s.Require().NoError(err)
	s.Empty(top.ProductIDs)
}

func (s *PipelineTestSuite) TestShippingUpdate() {
	_, err := s.orders.CapturePayment(s.ctx, s.captureRequest("order_A1", "Priya", "Sharma", 1))
	s.Require().NoError(err)

	order, err := s.orders.UpdateShipping(s.ctx, "order_A1", models.ShippingUpdate{
		Status: "shipped", Tracking: &models.Tracking{Carrier: " BlueDart ", Number: "BD1"},
	})
	s.Require().NoError(err)
	s.Equal(models.ShippingShipped, order.ShippingStatus)
	s.Equal("BlueDart", order.Tracking.Carrier)

	_, err = s.orders.UpdateShipping(s.ctx, "order_A1", models.ShippingUpdate{Status: "Lost"})
	s.True(errors.Is(err, models.ErrValidation))

	_, err = s.orders.UpdateShipping(s.ctx, "order_missing", models.ShippingUpdate{Status: "Delivered"})
	s.True(errors.Is(err, models.ErrNotFound))

	page, err := s.orders.ListOrders(s.ctx, models.OrderQuery{ShippingStatus: models.ShippingShipped})
	s.Require().NoError(err)
	s.Equal(1, page.TotalOrders)
}

func (s *PipelineTestSuite) TestExportCSVQuotesFields() {
	_, err := s.orders.CapturePayment(s.ctx, s.captureRequest("order_A1", "Jane", "Doe, Jr", 1, 2))
	s.Require().NoError(err)

	var buf bytes.Buffer
	s.Require().NoError(s.orders.ExportCSV(s.ctx, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	s.Require().Len(lines, 2)
	s.Equal("OrderID,Date,CustomerName,Email,Phone,Address,Total,Items", lines[0])
	s.Contains(lines[1], `,"Jane Doe, Jr",`)
	s.Contains(lines[1], `"12 MG Road, Pune, MH, 411001, IN"`)
	s.Contains(lines[1], ",200.00,")

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	s.Require().NoError(err)
	s.Equal("Jane Doe, Jr", records[1][2])
	s.Equal("Product 1 x1; Product 2 x1", records[1][7])
}

func (s *PipelineTestSuite) TestSeed() {
	path := filepath.Join(s.T().TempDir(), "catalog.yaml")
	content := `
products:
  - id: 1
    name: Silk Saree
    price: 120
    category: [sarees, silk]
    images: [saree.jpg]
  - id: 2
    name: Cotton Kurta
    price: 40
carousel: [2, 1]
`
	s.Require().NoError(os.WriteFile(path, []byte(content), 0644))

	seed, err := LoadSeedFile(path)
	s.Require().NoError(err)
	seeder := NewSeeder(s.catalog, s.curated, zap.NewNop())

	result, err := seeder.Seed(s.ctx, seed)
	s.Require().NoError(err)
	s.Equal(2, result.Created)

	seed.Products[1].Price = decimal.RequireFromString("45.5")
	result, err = seeder.Seed(s.ctx, seed)
	s.Require().NoError(err)
	s.Equal(2, result.Updated)

	product, err := s.catalog.GetProduct(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal("45.5", product.Price.String())

	carousel, err := s.curated.Resolve(s.ctx, models.CarouselIDs)
	s.Require().NoError(err)
	s.Require().Len(carousel, 2)
	s.Equal(2, carousel[0].ID)
}

func TestAdminAuthService(t *testing.T) {
	auth, err := NewAdminAuthService("s3cret", "token-secret", time.Hour)
	require.NoError(t, err)

	assert.ErrorIs(t, auth.Authorize(AdminCredential{}), ErrAdminUnauthorized)
	assert.ErrorIs(t, auth.Authorize(AdminCredential{Secret: "wrong"}), ErrAdminForbidden)
	assert.NoError(t, auth.Authorize(AdminCredential{Secret: "s3cret"}))

	_, _, err = auth.Login("wrong")
	assert.ErrorIs(t, err, ErrAdminForbidden)

	token, expiresAt, err := auth.Login("s3cret")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)
	assert.NoError(t, auth.Authorize(AdminCredential{Token: token}))
	assert.ErrorIs(t, auth.Authorize(AdminCredential{Token: token + "x"}), ErrAdminForbidden)

	other, err := NewAdminAuthService("s3cret", "different-token-secret", time.Hour)
	require.NoError(t, err)
	assert.ErrorIs(t, other.Authorize(AdminCredential{Token: token}), ErrAdminForbidden)

	auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.ErrorIs(t, auth.Authorize(AdminCredential{Token: token}), ErrAdminForbidden)

	_, err = NewAdminAuthService("", "", time.Hour)
	assert.Error(t, err)
}

func TestNewEventPublisher(t *testing.T) {
	cfg := testConfig("")
	logger := zap.NewNop()

	cfg.EventsDriver = "none"
	p, err := NewEventPublisher(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)

	cfg.EventsDriver = "kafka"
	cfg.KafkaBrokers = []string{"localhost:9092"}
	cfg.KafkaTopic = "storefront-events"
	p, err = NewEventPublisher(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &KafkaPublisher{}, p)
	assert.NoError(t, p.Close())

	cfg.EventsDriver = "carrier-pigeon"
	_, err = NewEventPublisher(cfg, logger)
	assert.Error(t, err)
}

func TestKafkaPublisherDoesNotBlock(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	p := NewKafkaPublisher([]string{"localhost:9092"}, "storefront-events", zap.New(core))

	assert.True(t, p.writer.Async)
	assert.LessOrEqual(t, p.writer.BatchTimeout, 50*time.Millisecond)
	require.NotNil(t, p.writer.Completion)

	p.writer.Completion([]kafka.Message{{Key: []byte("order-1")}}, nil)
	assert.Equal(t, 0, logs.Len())

	p.writer.Completion([]kafka.Message{{Key: []byte("order-1")}, {Key: []byte("order-2")}}, errors.New("broker unavailable"))
	require.Equal(t, 2, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "kafka delivery failed", entry.Message)
	assert.Equal(t, "order-1", entry.ContextMap()["key"])
	assert.Equal(t, "storefront-events", entry.ContextMap()["topic"])

	assert.NoError(t, p.Close())
}
