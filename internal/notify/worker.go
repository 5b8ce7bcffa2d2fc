package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/example/cartline/internal/payments"
	"github.com/example/cartline/pkg/config"
	"github.com/example/cartline/pkg/db/models"
	"github.com/example/cartline/pkg/enums"
	"github.com/example/cartline/pkg/logger"
	"github.com/example/cartline/pkg/metrics"
	"github.com/example/cartline/pkg/types"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

// Message is one SMS queued for delivery.
type Message struct {
	Recipient string
	Body      string
	OrderCode string
}

// LogRepository persists one row per delivery attempt outcome.
type LogRepository interface {
	Create(ctx context.Context, log *models.SMSLog) error
	ListByOrderCode(ctx context.Context, orderCode string) ([]models.SMSLog, error)
}

type logRepository struct {
	db *gorm.DB
}

// NewLogRepository builds an sms_logs repository bound to the provided DB.
func NewLogRepository(db *gorm.DB) LogRepository {
	return &logRepository{db: db}
}

func (r *logRepository) Create(ctx context.Context, log *models.SMSLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *logRepository) ListByOrderCode(ctx context.Context, orderCode string) ([]models.SMSLog, error) {
	var logs []models.SMSLog
	err := r.db.WithContext(ctx).
		Where("order_code = ?", orderCode).
		Order("created_at DESC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// Worker delivers SMS messages asynchronously. Callers enqueue and move
// on; delivery failures are logged and recorded but never surface to the
// request that triggered them.
type Worker struct {
	sender    Sender
	templates TemplateStore
	logs      LogRepository
	metrics   *metrics.SettlementMetrics
	logg      *logger.Logger
	cfg       config.SMSConfig
	otpTTL    time.Duration

	queue chan Message
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewWorker builds the notification worker. Start must be called before
// messages are enqueued.
func NewWorker(
	sender Sender,
	templates TemplateStore,
	logs LogRepository,
	settlementMetrics *metrics.SettlementMetrics,
	logg *logger.Logger,
	cfg config.SMSConfig,
	otpTTL time.Duration,
) (*Worker, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if templates == nil {
		return nil, fmt.Errorf("template store is required")
	}
	if logs == nil {
		return nil, fmt.Errorf("log repository is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Worker{
		sender:    sender,
		templates: templates,
		logs:      logs,
		metrics:   settlementMetrics,
		logg:      logg,
		cfg:       cfg,
		otpTTL:    otpTTL,
		queue:     make(chan Message, queueSize),
	}, nil
}

// Start launches the delivery loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for msg := range w.queue {
			w.deliver(msg)
		}
	}()
}

// Close stops accepting messages and waits for the queue to drain.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Worker) enqueue(ctx context.Context, msg Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.logg.Warn(ctx, "sms dropped, worker closed")
		return
	}
	select {
	case w.queue <- msg:
	default:
		w.metrics.IncSMS(enums.SMSStatusFailed.String())
		w.logg.Error(ctx, "sms dropped, queue full", nil)
	}
}

func (w *Worker) deliver(msg Message) {
	// Detached from the request context on purpose: the triggering
	// request has usually completed by the time delivery runs.
	ctx, cancel := context.WithTimeout(context.Background(), w.sendTimeout())
	defer cancel()

	backoff := retry.WithMaxRetries(uint64(w.cfg.MaxRetries), retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := w.sender.Send(ctx, msg.Recipient, msg.Body); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})

	log := models.SMSLog{
		ID:        uuid.New(),
		Recipient: msg.Recipient,
		Body:      msg.Body,
		Provider:  w.sender.Name(),
		Status:    enums.SMSStatusSent,
	}
	if msg.OrderCode != "" {
		log.OrderCode = &msg.OrderCode
	}
	if err != nil {
		log.Status = enums.SMSStatusFailed
		errText := err.Error()
		log.Error = &errText
		w.logg.Error(ctx, "sms delivery failed", err)
	}
	w.metrics.IncSMS(log.Status.String())

	if err := w.logs.Create(ctx, &log); err != nil {
		w.logg.Error(ctx, "recording sms log", err)
	}
}

func (w *Worker) sendTimeout() time.Duration {
	// Room for the retries on top of the per-call timeout.
	attempts := time.Duration(w.cfg.MaxRetries + 1)
	timeout := w.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return attempts*timeout + 5*time.Second
}

func (w *Worker) send(ctx context.Context, recipient, template, orderCode string, vars map[string]string) {
	body, err := w.templates.Render(ctx, template, vars)
	if err != nil {
		w.logg.Error(ctx, "rendering sms template", err)
		return
	}
	w.enqueue(ctx, Message{Recipient: recipient, Body: body, OrderCode: orderCode})
}

// SendOTP delivers a verification code to the phone being verified.
func (w *Worker) SendOTP(ctx context.Context, to types.Phone, code string) {
	w.send(ctx, to.E164(), TemplateOTP, "", map[string]string{
		"code":        code,
		"ttl_minutes": strconv.Itoa(int(w.otpTTL.Minutes())),
	})
}

// SendAccountCreated welcomes a buyer whose account was just provisioned.
func (w *Worker) SendAccountCreated(ctx context.Context, user *models.User) {
	recipient := types.Phone{CountryCode: user.CountryCode, Number: user.Number}.E164()
	w.send(ctx, recipient, TemplateAccountCreated, "", map[string]string{"name": user.Name})
}

// SendOrderPlaced confirms a freshly placed order to the buyer.
func (w *Worker) SendOrderPlaced(ctx context.Context, order *models.Order) {
	w.send(ctx, orderRecipient(order), TemplateOrderPlaced, order.Code, orderVars(order))
}

// SendPaymentReceived confirms a settled payment to the buyer.
func (w *Worker) SendPaymentReceived(ctx context.Context, order *models.Order) {
	w.send(ctx, orderRecipient(order), TemplatePaymentReceived, order.Code, orderVars(order))
}

// SendStatusUpdate tells the buyer their order moved to a new status.
func (w *Worker) SendStatusUpdate(ctx context.Context, order *models.Order, status enums.OrderStatus) {
	vars := orderVars(order)
	vars["status"] = status.String()
	w.send(ctx, orderRecipient(order), TemplateStatusUpdate, order.Code, vars)
}

func orderRecipient(order *models.Order) string {
	return types.Phone{CountryCode: order.CountryCode, Number: order.Number}.E164()
}

func orderVars(order *models.Order) map[string]string {
	return map[string]string{
		"name":       order.CustomerName,
		"order_code": order.Code,
		"total":      payments.FormatAmount(order.TotalCents),
	}
}
