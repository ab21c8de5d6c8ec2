// Package cli — команды инструмента dolya.
//
// CLI работает с брокером напрямую (без HTTP API): объявляет топологию,
// выполняет пробные lookup-вызовы, отправляет OTP-сообщения.
package cli
