package domain

import "errors"

// ErrDuplicate возвращается при повторной подаче живого фингерпринта.
var ErrDuplicate = errors.New("кандидат уже есть в леджере")

// ErrPostNotFound возвращается, если пост с таким id не найден.
var ErrPostNotFound = errors.New("пост не найден")

// ErrInvalidScheduleTime возвращается для времени публикации не в будущем.
var ErrInvalidScheduleTime = errors.New("время публикации должно быть в будущем")

// ErrStaleTransition возвращается, если текущий статус поста не совпадает с
// ожидаемым исходным состоянием перехода.
var ErrStaleTransition = errors.New("статус поста изменился, перечитайте леджер")

// ErrCorruptState возвращается при отсутствующем или нечитаемом леджере.
// Процесс не имеет права молча продолжить с пустым состоянием.
var ErrCorruptState = errors.New("леджер отсутствует или повреждён")

// ErrRetriesExhausted возвращается, когда retry_count достиг предела.
var ErrRetriesExhausted = errors.New("исчерпаны попытки публикации")

// TransientPublishError — временная ошибка публикации: лимиты, таймауты.
// Пост уходит на повтор с экспоненциальной задержкой.
type TransientPublishError struct {
	Err error
}

func (e *TransientPublishError) Error() string {
	return "временная ошибка публикации: " + e.Err.Error()
}

func (e *TransientPublishError) Unwrap() error { return e.Err }

// PermanentPublishError — необратимая ошибка публикации: невалидный payload,
// отказ канала. Пост отклоняется без повторов.
type PermanentPublishError struct {
	Err error
}

func (e *PermanentPublishError) Error() string {
	return "необратимая ошибка публикации: " + e.Err.Error()
}

func (e *PermanentPublishError) Unwrap() error { return e.Err }
