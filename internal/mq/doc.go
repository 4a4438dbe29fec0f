// Package mq содержит интеграцию с RabbitMQ.
//
// Два назначения:
//   - события жизненного цикла pipeline (created/completed,
//     step.completed) для внешних наблюдателей
//   - очередь запросов на выполнение: API ставит pipeline в очередь,
//     сервер потребляет и запускает
//
// Сервер работает и без RabbitMQ — в деградированном режиме запросы
// выполняются напрямую, события не публикуются.
package mq
