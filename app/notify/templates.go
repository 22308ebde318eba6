package notify

const msgStyle = `<style type="text/css">
			body {
				font-family: "Arial";
				font-size: 1.0em;
			}
			ul {
				margin-top: -0.5em;
				margin-left: -0.5em;
			}
			.bold {
				color: #882828;
				font-weight: 900;
			}
		</style>`

const defaultEventTemplate = `<!DOCTYPE html>
<html>
	<head>
		<meta name="viewport" content="width=device-width" />
		<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
		` + msgStyle + `
	</head>
	<body>
		<p>Job application {{.Type}} on <span class="bold">{{.Host}}</span> at {{.TS.Format "2006-01-02T15:04:05Z07:00"}}</p>
		<ul>
			<li>Company: <span class="bold">{{.Job.Company}}</span></li>
			<li>Position: <span class="bold">{{.Job.Position}}</span></li>
			<li>Salary: {{.Job.Salary}}$</li>
			<li>Status: {{.Job.Status}}</li>
			<li>Note: {{.Job.Note}}</li>
		</ul>
		{{- if .Changes}}
		<p>Changes:</p>
		<ul>
			{{- range .Changes}}
			<li>{{.}}</li>
			{{- end}}
		</ul>
		{{- end}}
		{{- if .Dashboard}}
		<p><a href="{{.Dashboard}}">Open dashboard</a></p>
		{{- end}}
	</body>
</html>
`

const defaultDigestTemplate = `<!DOCTYPE html>
<html>
	<head>
		<meta name="viewport" content="width=device-width" />
		<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
		` + msgStyle + `
	</head>
	<body>
		<p>Job applications digest from <span class="bold">{{.Host}}</span> at {{.TS.Format "2006-01-02T15:04:05Z07:00"}}</p>
		<ul>
			<li>Total: <span class="bold">{{.Stats.Total}}</span></li>
			<li>Open: <span class="bold">{{.Stats.Open}}</span></li>
			<li>Closed: <span class="bold">{{.Stats.Closed}}</span></li>
		</ul>
		{{- if .Open}}
		<p>Open applications:</p>
		<ul>
			{{- range .Open}}
			<li>{{.Position}} at {{.Company}}, {{.Salary}}$, {{.Status}}</li>
			{{- end}}
		</ul>
		{{- end}}
		{{- if .Dashboard}}
		<p><a href="{{.Dashboard}}">Open dashboard</a></p>
		{{- end}}
	</body>
</html>
`
