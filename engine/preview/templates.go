package preview

import (
	"fmt"

	"github.com/appforge/appforge/engine/core"
)

// indexHTMLTemplate is rewritten on every build so the embedded reporter
// always carries the current project ID. Runtime errors and unhandled
// rejections are posted to the errors report endpoint.
const indexHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>Preview App</title>
    <script>
      window.addEventListener('error', function (event) {
        fetch('/api/v0/errors/report', {
          method: 'POST',
          headers: { 'Content-Type': 'application/json' },
          body: JSON.stringify({
            project_id: '%[1]s',
            error_type: 'runtime',
            message: event.message || 'Unknown error',
            stack_trace: (event.error && event.error.stack) || '',
            file_path: event.filename || '',
            line_number: event.lineno || null,
            column_number: event.colno || null,
          }),
        }).catch(console.error);
      });
      window.addEventListener('unhandledrejection', function (event) {
        var reason = event.reason || {};
        fetch('/api/v0/errors/report', {
          method: 'POST',
          headers: { 'Content-Type': 'application/json' },
          body: JSON.stringify({
            project_id: '%[1]s',
            error_type: 'runtime',
            message: 'Unhandled Promise Rejection: ' + (reason.message || event.reason),
            stack_trace: reason.stack || '',
            file_path: '',
            line_number: null,
          }),
        }).catch(console.error);
      });
    </script>
  </head>
  <body>
    <div id="root"></div>
    <script type="module" src="/src/main.tsx"></script>
  </body>
</html>
`

func indexHTML(projectID core.ID) string {
	return fmt.Sprintf(indexHTMLTemplate, projectID)
}

const viteConfigTemplate = `import { defineConfig } from 'vite'
import react from '@vitejs/plugin-react-swc'
import path from 'path'

export default defineConfig({
  plugins: [react()],
  base: './',
  resolve: {
    alias: {
      '@': path.resolve(__dirname, './src'),
      'app': path.resolve(__dirname, './src/app.ts'),
    },
  },
  define: {
    '__API_URL__': JSON.stringify('http://localhost:8000'),
    '__APP_BASE_PATH__': JSON.stringify('/'),
  },
  build: {
    outDir: 'dist',
    emptyOutDir: true,
  },
})
`

const tsconfigTemplate = `{
  "compilerOptions": {
    "target": "ES2020",
    "useDefineForClassFields": true,
    "lib": ["ES2020", "DOM", "DOM.Iterable"],
    "module": "ESNext",
    "skipLibCheck": true,
    "moduleResolution": "bundler",
    "allowImportingTsExtensions": true,
    "resolveJsonModule": true,
    "isolatedModules": true,
    "noEmit": true,
    "jsx": "react-jsx",
    "strict": true,
    "noUnusedLocals": true,
    "noUnusedParameters": true,
    "noFallthroughCasesInSwitch": true
  },
  "include": ["src"]
}
`

const tailwindConfigTemplate = `/** @type {import('tailwindcss').Config} */
export default {
  content: [
    "./index.html",
    "./src/**/*.{js,ts,jsx,tsx}",
  ],
  theme: {
    extend: {},
  },
  plugins: [],
}
`

const postcssConfigTemplate = `export default {
  plugins: {
    tailwindcss: {},
    autoprefixer: {},
  },
}
`

const indexCSSTemplate = `@tailwind base;
@tailwind components;
@tailwind utilities;
`

const mainTSXTemplate = `import React from 'react'
import ReactDOM from 'react-dom/client'
import './index.css'
import App from './App'

ReactDOM.createRoot(document.getElementById('root')!).render(
  <React.StrictMode>
    <App />
  </React.StrictMode>,
)
`

// appStubTemplate backs the 'app' import alias generated pages rely on. The
// real platform client is replaced with a localhost mock.
const appStubTemplate = `export const API_URL = 'http://localhost:8000';
export const WS_API_URL = 'ws://localhost:8000';
export const APP_BASE_PATH = '/';

export const apiClient = {
  get: async (url: string) => ({ data: { message: 'Mock API Response' } }),
  post: async (url: string, data?: any) => ({ data: { message: 'Mock API Response' } }),
  put: async (url: string, data?: any) => ({ data: { message: 'Mock API Response' } }),
  delete: async (url: string) => ({ data: { message: 'Mock API Response' } }),
};

export enum Mode {
  DEV = 'dev',
  PROD = 'prod'
}
export const mode = Mode.DEV;
`

const uiButtonTemplate = `import React from 'react';
export const Button = ({ children, onClick, className = '' }: any) => (
  <button onClick={onClick} className={` + "`" + `px-4 py-2 bg-blue-500 text-white rounded hover:bg-blue-600 ${className}` + "`" + `}>
    {children}
  </button>
);
`

const uiSpinnerTemplate = `import React from 'react';
export const Spinner = ({ size = 'medium' }: any) => (
  <div className="animate-spin rounded-full border-4 border-gray-300 border-t-blue-500"
       style={{ width: size === 'large' ? '48px' : '24px', height: size === 'large' ? '48px' : '24px' }} />
);
`

const uiAlertTemplate = `import React from 'react';
export const Alert = ({ type = 'info', message }: any) => (
  <div className={` + "`" + `p-4 rounded ${type === 'error' ? 'bg-red-100 text-red-700' : 'bg-blue-100 text-blue-700'}` + "`" + `}>
    {message}
  </div>
);
`

const uiIndexTemplate = `export { Button } from './button';
export { Spinner } from './spinner';
export { Alert } from './alert';
`

// BuildRequiredHTML is served when a preview is requested before any
// successful build cached a dist directory.
const BuildRequiredHTML = `<!DOCTYPE html>
<html>
  <head>
    <title>Preview - Build Required</title>
    <style>
      body {
        font-family: system-ui, -apple-system, sans-serif;
        display: flex;
        align-items: center;
        justify-content: center;
        height: 100vh;
        margin: 0;
        background: #1a1a1a;
        color: #fff;
      }
      .container { text-align: center; max-width: 500px; padding: 2rem; }
      h1 { margin: 0 0 1rem; }
      p { margin: 0.5rem 0; color: #aaa; }
      code { background: #2a2a2a; padding: 0.2rem 0.5rem; border-radius: 4px; }
    </style>
  </head>
  <body>
    <div class="container">
      <h1>Preview Build Required</h1>
      <p>Please build the preview first by calling:</p>
      <p><code>POST /api/v0/preview/build/{project_id}</code></p>
    </div>
  </body>
</html>
`
