package engine

import (
	"fmt"
	"net/smtp"
	"sync"

	"github.com/quantbot/gotrader/internal/event"
	"github.com/quantbot/gotrader/pkg/config"
	"github.com/quantbot/gotrader/pkg/logger"
)

// EmailEngineName 邮件引擎注册名
const EmailEngineName = "email"

var emailLog = logger.Component("email_engine")

// emailMessage 待发送邮件
type emailMessage struct {
	subject  string
	content  string
	receiver string
}

// EmailEngine 异步邮件通知：消息先入队列，发送 goroutine 在第一次
// SendEmail 时才启动，发送失败只记录日志不重试。
type EmailEngine struct {
	*BaseEngine

	mu      sync.Mutex
	cfg     config.EmailConfig
	queue   chan emailMessage
	started bool
	wg      sync.WaitGroup
}

// NewEmailEngine 创建邮件引擎（未配置时 SendEmail 为空操作）
func NewEmailEngine(main *MainEngine, ee *event.EventEngine) *EmailEngine {
	return &EmailEngine{
		BaseEngine: NewBaseEngine(main, ee, EmailEngineName),
		queue:      make(chan emailMessage, 100),
	}
}

// Configure 设置 SMTP 参数，在首次 SendEmail 之前调用
func (e *EmailEngine) Configure(cfg config.EmailConfig) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

// SendEmail 异步发送邮件。receiver 为空时使用配置的默认收件人。
// 队列满时丢弃并记录警告，不阻塞调用方。
func (e *EmailEngine) SendEmail(subject, content, receiver string) {
	e.mu.Lock()
	if !e.cfg.Active {
		e.mu.Unlock()
		return
	}
	if receiver == "" {
		receiver = e.cfg.Receiver
	}
	if !e.started {
		e.started = true
		e.wg.Add(1)
		go e.run()
	}
	e.mu.Unlock()

	select {
	case e.queue <- emailMessage{subject: subject, content: content, receiver: receiver}:
	default:
		emailLog.Warnf("邮件队列已满, 丢弃: %s", subject)
	}
}

func (e *EmailEngine) run() {
	defer e.wg.Done()

	for msg := range e.queue {
		if err := e.send(msg); err != nil {
			emailLog.Errorf("邮件发送失败: subject=%s err=%v", msg.subject, err)
		}
	}
}

func (e *EmailEngine) send(msg emailMessage) error {
	e.mu.Lock()
	cfg := e.cfg
	e.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Server)

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		cfg.Sender, msg.receiver, msg.subject, msg.content)

	return smtp.SendMail(addr, auth, cfg.Sender, []string{msg.receiver}, []byte(body))
}

// Close 停止发送 goroutine，队列里剩余的邮件发完再退出
func (e *EmailEngine) Close() {
	e.mu.Lock()
	started := e.started
	e.started = false
	e.mu.Unlock()

	if started {
		close(e.queue)
		e.wg.Wait()
	}
}
