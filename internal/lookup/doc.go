// Package lookup реализует обработчики запросов информации о пользователях,
// приходящих через RabbitMQ из split-сервиса.
//
// Два вида запросов:
//   - батчевый (user_info_request_queue): набор user_id, ответ уходит в
//     reply-to очередь запроса; ненайденные id молча опускаются
//   - одиночный (user.lookup.request.queue): один phone_or_email, ответ
//     с явным флагом success всегда публикуется в lookup exchange
//
// Расхождение политик намеренное: для батча «не найден» — ожидаемый
// частичный результат, для одиночного поиска — явный исход.
package lookup
