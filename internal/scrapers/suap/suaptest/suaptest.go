// Package suaptest serves a small SUAP portal through browsertest.
package suaptest

import (
	"time"

	"suapreport/internal/browser/browsertest"
	"suapreport/internal/session"
)

// BaseURL is where the fixture portal lives.
const BaseURL = "https://suap.test"

const (
	LoginPage = `<form><input id="id_username"><input id="id_password"><input type="submit" value="Acessar"></form>`
	HomePage  = `<div id="user-tools"><span class="user-profile">servidor</span></div>`

	SearchPage = `<table id="result_list">
<thead><tr><th>#</th><th>Foto</th><th>Dados</th><th>Matrícula</th></tr></thead>
<tbody>
<tr>
	<th><a class="icon-view" href="/edu/professor/77/">ver</a></th>
	<td class="field-get_foto"><img src="/media/77.jpg"></td>
	<td class="field-get_dados_gerais"><dl><dd>Mariana Silveira</dd><dd>111.111.111-11</dd><dd>Docente</dd><dd>mariana@ifsul.edu.br</dd></dl></td>
	<td class="field-display_matricula">7654321</td>
</tr>
<tr>
	<th><a class="icon-view" href="/edu/professor/42/">ver</a></th>
	<td class="field-get_foto"><img src="/media/42.jpg"></td>
	<td class="field-get_dados_gerais"><dl><dd>Maria Silva Souza</dd><dd>222.222.222-22</dd><dd>Docente</dd><dd>maria@ifsul.edu.br</dd></dl></td>
	<td class="field-display_matricula">1234567</td>
</tr>
<tr>
	<th><a class="icon-view" href="/edu/professor/sem-id/">ver</a></th>
	<td class="field-get_dados_gerais"><dl><dd>Sem Identificador</dd></dl></td>
</tr>
</tbody>
</table>`

	BooksFirstPage = `<div id="content"><div id="disciplinas"><table>
<thead><tr><th>Diário</th><th>Turma</th><th>Disciplina</th><th>Curso</th></tr></thead>
<tbody>
<tr><td><a href="/edu/meu_diario/101/">101</a></td><td>20241.1.INF.1M</td><td>TEC.0021 - Banco de Dados</td><td>Técnico em Informática</td></tr>
<tr><td colspan="4">Nenhum diário encontrado</td></tr>
</tbody>
</table></div></div>`

	BooksSecondPage = `<div id="content"><div id="disciplinas"><table>
<thead><tr><th>Diário</th><th>Turma</th><th>Disciplina</th><th>Curso</th></tr></thead>
<tbody>
<tr><td><a href="/edu/meu_diario/202/">202</a></td><td>20242.1.INF.2M</td><td>TEC.0030 - Redes</td><td>Técnico em Informática</td></tr>
</tbody>
</table></div></div>`

	LessonsPage = `<div id="content"><div id="aulas"><table>
<thead><tr><th>Etapa</th><th>Data</th><th>Quantidade</th><th>Professor</th><th>Conteúdo</th></tr></thead>
<tbody>
<tr><td>1</td><td>15/05/2024</td><td>2 Hora(s)/Aula</td><td>Maria Souza</td><td>Modelagem</td></tr>
<tr><td>1</td><td>16/05/2024</td><td>2 Hora(s)/Aula</td><td>João Pereira</td><td>SQL</td></tr>
</tbody>
</table></div></div>`

	BareLessonsPage = `<div id="content"><div id="aulas"><table>
<tbody>
<tr><td>10/09/2024</td><td>Introdução</td></tr>
</tbody>
</table></div></div>`

	ProfilePage = `<div id="content"><table class="info">
<tr><td>Nome</td><td>Maria Silva Souza</td></tr>
<tr><td>Nome Usual</td><td>Mari Souza</td></tr>
</table></div>`
)

// Username and Password log into the fixture portal.
const (
	Username = "servidor"
	Password = "secret"
)

// Pages maps every fixture url to its page. Professor 42 is Maria Silva
// Souza, she teaches diary 101 in 2024.1 and diary 202 in 2024.2.
var Pages = map[string]string{
	BaseURL + "/admin/edu/professor/?vinculo__setor__uo=1&q=maria+silva&tab=tab_any_data": SearchPage,
	BaseURL + "/edu/professor/42/?tab=disciplinas&ano-periodo=2024.1":                      BooksFirstPage,
	BaseURL + "/edu/professor/42/?tab=disciplinas&ano-periodo=2024.2":                      BooksSecondPage,
	BaseURL + "/edu/meu_diario/101/1/?tab=aulas":                                           LessonsPage,
	BaseURL + "/edu/meu_diario/202/1/?tab=aulas":                                           BareLessonsPage,
	BaseURL + "/edu/professor/42/":                                                         ProfilePage,
}

// NewBrowser returns a fixture browser serving Pages behind the login.
func NewBrowser() *browsertest.Browser {
	b := browsertest.New(browsertest.Login{
		URL:              BaseURL + "/accounts/login/",
		UsernameSelector: "#id_username",
		PasswordSelector: "#id_password",
		SubmitSelector:   `input[type="submit"]`,
		Username:         Username,
		Password:         Password,
		Page:             LoginPage,
		Home:             HomePage,
	})
	for url, html := range Pages {
		b.Handle(url, html)
	}
	return b
}

// SessionOptions logs into the fixture portal with short timeouts.
func SessionOptions() session.Options {
	return session.Options{
		Credentials: session.Credentials{Username: Username, Password: Password},
		Login: session.LoginForm{
			URL:              BaseURL + "/accounts/login/",
			UsernameSelector: "#id_username",
			PasswordSelector: "#id_password",
			SubmitSelector:   `input[type="submit"]`,
			ReadySelector:    "#user-tools .user-profile",
		},
		ConnectBackoff: time.Millisecond,
		AuthTimeout:    time.Second,
		ConfirmTimeout: time.Second,
		ReauthAttempts: 1,
	}
}
