package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/iudanet/taskkeeper/internal/server/handlers"
	"github.com/iudanet/taskkeeper/internal/server/ratelimit"
)

// Policy описывает политику допуска одного маршрута
type Policy struct {
	Limit   int           // максимум запросов в окне
	Window  time.Duration // длительность окна
	PerUser bool          // ключ по аутентифицированному пользователю, иначе по IP
}

// AdmissionGate решает, допускать ли запрос до бизнес-логики.
// Таблица маршрут -> политика собирается явно на старте и читается
// точным совпадением; маршрут без политики проходит без учета.
type AdmissionGate struct {
	logger   *slog.Logger
	store    ratelimit.Store
	policies map[string]Policy
}

// NewAdmissionGate создает новый gate поверх заданного store
func NewAdmissionGate(logger *slog.Logger, store ratelimit.Store) *AdmissionGate {
	return &AdmissionGate{
		logger:   logger,
		store:    store,
		policies: make(map[string]Policy),
	}
}

// SetPolicy регистрирует политику маршрута. Вызывается только на старте,
// до начала обработки запросов.
func (g *AdmissionGate) SetPolicy(route string, p Policy) {
	g.policies[route] = p
}

// Middleware возвращает middleware допуска для маршрута.
// Заголовки X-RateLimit-Limit и X-RateLimit-Remaining выставляются
// на каждый учтенный ответ, включая успешные.
func (g *AdmissionGate) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			policy, ok := g.policies[route]
			if !ok || policy.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			key := g.requestKey(r, policy)

			allowed, remaining, err := g.store.TryConsume(r.Context(), key, policy.Limit, policy.Window)
			if err != nil {
				// Отказ limiter store: чтение пропускаем (fail-open),
				// запись отклоняем (fail-closed). Защита не отключается
				// молча и не блокирует весь трафик целиком.
				if r.Method == http.MethodGet || r.Method == http.MethodHead {
					g.logger.Warn("rate limit store unavailable, admitting read",
						"route", route, "error", err)
					next.ServeHTTP(w, r)
					return
				}
				g.logger.Error("rate limit store unavailable, rejecting write",
					"route", route, "error", err)
				sendLimitError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				g.logger.Warn("Rate limit exceeded",
					"key", key,
					"method", r.Method,
					"path", r.URL.Path,
				)
				sendLimitError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestKey выбирает ключ учета: user:<id> для per-user политики
// при наличии аутентифицированного пользователя, иначе ip:<адрес>
func (g *AdmissionGate) requestKey(r *http.Request, policy Policy) string {
	if policy.PerUser {
		if userID, ok := handlers.GetUserID(r.Context()); ok {
			return "user:" + userID
		}
	}
	return "ip:" + getClientIP(r)
}

// sendLimitError отправляет JSON ошибку gate, не раскрывая внутренних деталей
func sendLimitError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = fmt.Fprintf(w, `{"error":%q,"message":%q}`, http.StatusText(statusCode), message)
}

// getClientIP извлекает IP адрес клиента из запроса
// Проверяет заголовки X-Forwarded-For и X-Real-IP для прокси
func getClientIP(r *http.Request) string {
	// Проверяем X-Forwarded-For (для прокси/load balancers)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Берем первый IP из списка (реальный клиент)
		for idx := 0; idx < len(xff); idx++ {
			if xff[idx] == ',' {
				return xff[:idx]
			}
		}
		return xff
	}

	// Проверяем X-Real-IP
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Используем RemoteAddr без порта, чтобы ключ не зависел от соединения
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
