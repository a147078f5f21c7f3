package rabbitmq

// Exchange обменник, через который проходят письма.
const Exchange = "notifications"

// Очередь писем восстановления пароля.
const (
	PasswordResetQueue      = "notifications.password_reset"
	PasswordResetRoutingKey = "password_reset"
)

// QueueConfig пара имя очереди и ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetMailQueues возвращает очереди, которые объявляются при старте.
func GetMailQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: PasswordResetQueue, RoutingKey: PasswordResetRoutingKey},
	}
}
