package form

// Scripted replies of the intake flow.
const (
	TextWelcome = "✈️ Добро пожаловать в бот для подбора туров!\n" +
		"Используйте /tour для подбора или /faq для помощи"
	TextQuestion1 = "Давайте подберём тур! Ответьте на 3 вопроса:\n\n" +
		"1. Куда хотите поехать? (Например: Турция, Бали)"
	TextQuestion2 = "2. На какие даты? (Например: 01-15 августа)"
	TextQuestion3 = "3. Какой у вас бюджет на человека? (Например: 100 000 рублей)"
	TextAccepted  = "✅ Спасибо! Ваша заявка принята.\n" +
		"Менеджер свяжется с вами в течение часа."
	TextStartFirst = "Пожалуйста, начните с команды /tour, чтобы я мог вам помочь."
)

// prompts[n] asks the question of step n.
var prompts = [Steps + 1]string{1: TextQuestion1, 2: TextQuestion2, 3: TextQuestion3}
